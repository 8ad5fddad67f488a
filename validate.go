package imageset

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// RejectKind tells whether a field was absent or present but unusable.
type RejectKind int

const (
	RejectMissing RejectKind = iota
	RejectMalformed
)

func (k RejectKind) String() string {
	if k == RejectMissing {
		return "missing"
	}
	return "malformed"
}

// RejectionError is returned by Validate for a record that fails the schema.
type RejectionError struct {
	Field string     // one of the Field* constants
	Kind  RejectKind // missing or malformed
	Value any        // offending value for malformed fields
}

func (e *RejectionError) Error() string {
	if e.Kind == RejectMissing {
		return fmt.Sprintf("imageset: record rejected: %s missing", e.Field)
	}
	return fmt.Sprintf("imageset: record rejected: %s malformed (%v)", e.Field, e.Value)
}

func missing(field string) error { return &RejectionError{Field: field, Kind: RejectMissing} }

func malformed(field string, v any) error {
	return &RejectionError{Field: field, Kind: RejectMalformed, Value: v}
}

// Validate checks raw against the record schema in a fixed order: id, url,
// width and height, author. The first failing field is reported.
func Validate(raw RawRecord) (ImageRecord, error) {
	var rec ImageRecord

	v, ok := present(raw, FieldID)
	if !ok {
		return ImageRecord{}, missing(FieldID)
	}
	id, ok := coerceInt(v)
	if !ok {
		return ImageRecord{}, malformed(FieldID, v)
	}
	rec.id = id

	v, ok = present(raw, FieldURL)
	if !ok {
		return ImageRecord{}, missing(FieldURL)
	}
	s, _ := v.(string)
	if !isHTTPURL(s) {
		return ImageRecord{}, malformed(FieldURL, v)
	}
	rec.url = strings.TrimSpace(s)

	for _, f := range []string{FieldWidth, FieldHeight} {
		v, ok = present(raw, f)
		if !ok {
			return ImageRecord{}, missing(f)
		}
		n, ok := coerceInt(v)
		if !ok || n < 0 || n > math.MaxInt32 {
			return ImageRecord{}, malformed(f, v)
		}
		if f == FieldWidth {
			rec.width = int(n)
		} else {
			rec.height = int(n)
		}
	}

	v, ok = present(raw, FieldAuthor)
	if !ok {
		return ImageRecord{}, missing(FieldAuthor)
	}
	author, isStr := v.(string)
	if !isStr {
		return ImageRecord{}, malformed(FieldAuthor, v)
	}
	rec.author = strings.TrimSpace(author)

	return rec, nil
}

// present reports whether key holds a non-nil, non-blank value.
func present(raw RawRecord, key string) (any, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

// coerceInt accepts Go integers, integral floats, json.Number and decimal strings.
func coerceInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return coerceInt(f)
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// isHTTPURL reports whether s parses as an absolute http(s) URL with a host.
func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
