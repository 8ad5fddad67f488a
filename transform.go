package imageset

import (
	"net/url"
	"strconv"
)

// ResizeTransform asks an image CDN for a bounded rendition by setting the
// w (width) and q (quality) query parameters. Non-positive values are left out.
// URLs that fail to parse are returned unchanged.
func ResizeTransform(width, quality int) URLTransform {
	return func(rawURL string) string {
		u, err := url.Parse(rawURL)
		if err != nil {
			return rawURL
		}
		q := u.Query()
		if width > 0 {
			q.Set("w", strconv.Itoa(width))
		}
		if quality > 0 {
			q.Set("q", strconv.Itoa(quality))
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
}

// IdentityTransform fetches record URLs as they are.
func IdentityTransform(rawURL string) string { return rawURL }
