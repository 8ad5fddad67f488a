package imageset

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/bep/imagemeta"
)

// maxEmbeddedBytes bounds how much of a file is read to find its metadata.
const maxEmbeddedBytes = 4 << 20

// EmbeddedMetadata holds the descriptive EXIF, IPTC and XMP fields of a
// stored image. Only free-text fields are kept; camera and rights tags are not.
type EmbeddedMetadata struct {
	EXIFDescription string
	IPTCHeadline    string
	IPTCCaption     string
	IPTCKeywords    []string
	XMPHeadline     string
	XMPTitle        string
	XMPDescription  string
	XMPSubject      []string
}

// Text joins every field into one lower-cased string.
func (m *EmbeddedMetadata) Text() string {
	if m == nil {
		return ""
	}
	parts := []string{m.EXIFDescription, m.IPTCHeadline, m.IPTCCaption, m.XMPHeadline, m.XMPTitle, m.XMPDescription}
	parts = append(parts, m.IPTCKeywords...)
	parts = append(parts, m.XMPSubject...)

	var b strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return strings.ToLower(b.String())
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
// XMP names are the local element or attribute name with its first letter
// upper-cased: dc:subject arrives as "Subject", photoshop:Headline as "Headline".
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"ImageDescription": true,
	},
	imagemeta.IPTC: {
		"Headline":         true,
		"Caption-Abstract": true,
		"Keywords":         true,
	},
	imagemeta.XMP: {
		"Headline":    true,
		"Title":       true,
		"Description": true,
		"Subject":     true,
	},
}

// embeddedSources are decoded one at a time. In a JPEG, EXIF and XMP share
// the APP1 marker and the decoder claims the first APP1 segment for EXIF,
// so a combined pass loses an XMP packet that comes first.
var embeddedSources = []imagemeta.Source{imagemeta.EXIF, imagemeta.IPTC, imagemeta.XMP}

// ReadEmbeddedMetadata parses the file at path. It returns nil when the file
// cannot be read or carries no descriptive metadata.
func ReadEmbeddedMetadata(path string) *EmbeddedMetadata {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxEmbeddedBytes))
	if err != nil {
		return nil
	}
	return ExtractEmbeddedMetadata(data)
}

// ExtractEmbeddedMetadata parses EXIF/IPTC/XMP metadata from raw image bytes.
// Returns nil if the data is empty, not a known image format, or has no
// descriptive tags.
func ExtractEmbeddedMetadata(data []byte) *EmbeddedMetadata {
	format := detectImageFormat(data)
	if format == imagemeta.ImageFormatAuto {
		return nil
	}

	meta := &EmbeddedMetadata{}
	found := false

	for _, source := range embeddedSources {
		// A broken segment of one source does not hide the others.
		_, _ = imagemeta.Decode(imagemeta.Options{
			R:           bytes.NewReader(data),
			ImageFormat: format,
			Sources:     source,
			ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
				if tags, ok := wantedTags[ti.Source]; ok {
					return tags[ti.Tag]
				}
				return false
			},
			HandleTag: func(ti imagemeta.TagInfo) error {
				if setEmbeddedTag(meta, ti) {
					found = true
				}
				return nil
			},
		})
	}

	if !found {
		return nil
	}
	return meta
}

// detectImageFormat sniffs the container from magic bytes. imagemeta
// requires the format up front.
func detectImageFormat(data []byte) imagemeta.ImageFormat {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return imagemeta.JPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return imagemeta.PNG
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return imagemeta.WebP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return imagemeta.TIFF
	default:
		return imagemeta.ImageFormatAuto
	}
}

// setEmbeddedTag stores ti into meta and reports whether it held any text.
func setEmbeddedTag(meta *EmbeddedMetadata, ti imagemeta.TagInfo) bool {
	switch ti.Source {
	case imagemeta.EXIF:
		if ti.Tag != "ImageDescription" {
			return false
		}
		meta.EXIFDescription = tagValueString(ti.Value)
		return meta.EXIFDescription != ""
	case imagemeta.IPTC:
		switch ti.Tag {
		case "Headline":
			meta.IPTCHeadline = tagValueString(ti.Value)
			return meta.IPTCHeadline != ""
		case "Caption-Abstract":
			meta.IPTCCaption = tagValueString(ti.Value)
			return meta.IPTCCaption != ""
		case "Keywords":
			kw := tagValueStrings(ti.Value)
			meta.IPTCKeywords = append(meta.IPTCKeywords, kw...)
			return len(kw) > 0
		}
	case imagemeta.XMP:
		switch ti.Tag {
		case "Headline":
			meta.XMPHeadline = tagValueString(ti.Value)
			return meta.XMPHeadline != ""
		case "Title":
			meta.XMPTitle = tagValueString(ti.Value)
			return meta.XMPTitle != ""
		case "Description":
			meta.XMPDescription = tagValueString(ti.Value)
			return meta.XMPDescription != ""
		case "Subject":
			meta.XMPSubject = tagValueStrings(ti.Value)
			return len(meta.XMPSubject) > 0
		}
	}
	return false
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	if all := tagValueStrings(v); len(all) > 0 {
		return all[0]
	}
	return ""
}

// tagValueStrings extracts every non-empty string from a tag value.
func tagValueStrings(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch val := v.(type) {
	case string:
		add(val)
	case []string:
		for _, s := range val {
			add(s)
		}
	case []any:
		for _, e := range val {
			if s, ok := e.(string); ok {
				add(s)
			}
		}
	}
	return out
}
