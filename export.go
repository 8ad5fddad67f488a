package imageset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ExportColumns maps record fields to zero-based columns of an export.
// A negative index means the export has no such column.
type ExportColumns struct {
	ID     int `yaml:"id"`
	URL    int `yaml:"url"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Author int `yaml:"author"`
}

// UnsplashColumns is the layout of the Unsplash Lite photos export.
//
// The Lite export's photo_id column holds slugs such as "XMyPniM9LF0", not
// integers, so Validate rejects every row of an unmodified export as a
// malformed id. Re-key the file to numeric ids first (or map ID to a numeric
// column). The curator keys on the raw id and is unaffected.
var UnsplashColumns = ExportColumns{ID: 0, URL: 2, Width: 5, Height: 6, Author: 9}

// ExportOptions configures an ExportSource.
type ExportOptions struct {
	Columns ExportColumns // default: UnsplashColumns
	Limit   int           // max rows read (0 = all)
	Logger  *slog.Logger
	Metrics *Metrics
}

// ExportSource reads a tab-delimited bulk export with a header row.
// Rows whose column count differs from the header are skipped and counted.
type ExportSource struct {
	path        string
	opts        ExportOptions
	unparseable atomic.Int64
}

// OpenExport checks that path exists and returns a source over it.
// A missing file is reported as ErrMissingMetadata.
func OpenExport(path string, opts ExportOptions) (*ExportSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, path)
		}
		return nil, fmt.Errorf("imageset: stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMissingMetadata, path)
	}
	if opts.Columns == (ExportColumns{}) {
		opts.Columns = UnsplashColumns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ExportSource{path: path, opts: opts}, nil
}

func (s *ExportSource) Name() string { return "export:" + filepath.Base(s.path) }

// Unparseable is the number of rows skipped so far.
func (s *ExportSource) Unparseable() int64 { return s.unparseable.Load() }

// Rows yields every data row of the export. Each call re-opens the file.
func (s *ExportSource) Rows(ctx context.Context) iter.Seq2[MetadataRow, error] {
	return func(yield func(MetadataRow, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			yield(MetadataRow{}, fmt.Errorf("imageset: open %s: %w", s.path, err))
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.Comma = '\t'
		r.LazyQuotes = true
		r.FieldsPerRecord = -1

		header, err := r.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				yield(MetadataRow{}, fmt.Errorf("imageset: read header of %s: %w", s.path, err))
			}
			return
		}
		width := len(header)

		read := 0
		for {
			if ctx.Err() != nil {
				return
			}
			if s.opts.Limit > 0 && read >= s.opts.Limit {
				return
			}
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			read++
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if !yield(MetadataRow{}, s.skip(fmt.Errorf("%w: line %d: %v", ErrUnparseableRow, perr.Line, perr.Err))) {
					return
				}
				continue
			}
			if err != nil {
				yield(MetadataRow{}, fmt.Errorf("imageset: read %s: %w", s.path, err))
				return
			}
			if len(rec) != width {
				line, _ := r.FieldPos(0)
				err := fmt.Errorf("%w: line %d: %d columns, want %d", ErrUnparseableRow, line, len(rec), width)
				if !yield(MetadataRow{}, s.skip(err)) {
					return
				}
				continue
			}
			if !yield(MetadataRow{ID: rec[0], Fields: rec}, nil) {
				return
			}
		}
	}
}

func (s *ExportSource) skip(err error) error {
	s.unparseable.Add(1)
	s.opts.Metrics.observeSourceError(s.Name())
	s.opts.Logger.Debug("imageset: skipping export row", "error", err.Error())
	return err
}

// Records yields one RawRecord per well-formed row using the column map.
func (s *ExportSource) Records(ctx context.Context) iter.Seq2[RawRecord, error] {
	cols := s.opts.Columns
	return func(yield func(RawRecord, error) bool) {
		for row, err := range s.Rows(ctx) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			raw := RawRecord{}
			pick := func(key string, col int) {
				if col >= 0 && col < len(row.Fields) {
					raw[key] = row.Fields[col]
				}
			}
			pick(FieldID, cols.ID)
			pick(FieldURL, cols.URL)
			pick(FieldWidth, cols.Width)
			pick(FieldHeight, cols.Height)
			pick(FieldAuthor, cols.Author)
			if !yield(raw, nil) {
				return
			}
		}
	}
}
