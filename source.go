package imageset

import (
	"context"
	"errors"
	"iter"
	"strings"
)

var (
	// ErrSourceStatus is wrapped by page failures of a remote source.
	ErrSourceStatus = errors.New("imageset: metadata source request failed")

	// ErrUnparseableRow is wrapped by export rows that cannot be read.
	ErrUnparseableRow = errors.New("imageset: unparseable metadata row")

	// ErrMissingCredential is returned when a remote source has no API key.
	ErrMissingCredential = errors.New("imageset: missing API credential")

	// ErrMissingMetadata is returned when a metadata export file does not exist.
	ErrMissingMetadata = errors.New("imageset: metadata file not found")
)

// MetadataSource produces a finite, lazy sequence of candidate records.
// A non-nil error in the sequence describes one failed page or row; the
// sequence continues after it. Sequences are not restartable mid-way.
type MetadataSource interface {
	Name() string
	Records(ctx context.Context) iter.Seq2[RawRecord, error]
}

// MetadataRow is one row of free-text metadata keyed by identifier.
type MetadataRow struct {
	ID     string
	Fields []string
}

// Text is every field of the row joined by spaces and lower-cased.
func (r MetadataRow) Text() string {
	return strings.ToLower(strings.Join(r.Fields, " "))
}

// RowSource produces metadata rows for curation.
type RowSource interface {
	Rows(ctx context.Context) iter.Seq2[MetadataRow, error]
}
