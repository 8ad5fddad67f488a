package imageset

import "strconv"

// RawRecord is an untyped candidate produced by a MetadataSource.
// Keys are the Field* constants; values are whatever the source decoded.
type RawRecord map[string]any

// Well-known RawRecord keys.
const (
	FieldID     = "id"
	FieldURL    = "url"
	FieldWidth  = "width"
	FieldHeight = "height"
	FieldAuthor = "author"
)

// ImageRecord is a validated candidate. The zero value is not valid;
// construct it with Validate or NewImageRecord. Fields are read-only.
type ImageRecord struct {
	id     int64
	url    string
	width  int
	height int
	author string
}

// NewImageRecord validates the typed fields and returns an ImageRecord.
func NewImageRecord(id int64, rawURL string, width, height int, author string) (ImageRecord, error) {
	return Validate(RawRecord{
		FieldID:     id,
		FieldURL:    rawURL,
		FieldWidth:  width,
		FieldHeight: height,
		FieldAuthor: author,
	})
}

func (r ImageRecord) ID() int64      { return r.id }
func (r ImageRecord) URL() string    { return r.url }
func (r ImageRecord) Width() int     { return r.width }
func (r ImageRecord) Height() int    { return r.height }
func (r ImageRecord) Author() string { return r.author }

// Key is the catalog key of the record, its decimal identifier.
func (r ImageRecord) Key() string { return strconv.FormatInt(r.id, 10) }

// WithURL returns a copy of r pointing to rawURL. The new URL is not
// re-validated; callers use it for decorated variants of a valid URL.
func (r ImageRecord) WithURL(rawURL string) ImageRecord {
	r.url = rawURL
	return r
}
