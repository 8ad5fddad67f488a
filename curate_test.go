package imageset

import (
	"context"
	"iter"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowsOf is a RowSource over fixed rows.
type rowsOf []MetadataRow

func (r rowsOf) Rows(context.Context) iter.Seq2[MetadataRow, error] {
	return func(yield func(MetadataRow, error) bool) {
		for _, row := range r {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func row(fields ...string) MetadataRow { return MetadataRow{ID: fields[0], Fields: fields} }

func newTestCurator(cat Catalog) *Curator {
	return NewCurator(cat, CurateOptions{Logger: quietLogger()})
}

func TestCurate_KeepsScenery(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	writeFile(t, cat.Root, "42.jpg", "jpeg")

	rep, err := newTestCurator(cat).Curate(context.Background(),
		rowsOf{row("42", "http://example.com/a.jpg", "mountain lake view")})
	require.NoError(t, err)

	assert.Equal(t, CurationReport{Processed: 1, Kept: 1}, rep)
	assert.FileExists(t, cat.ActivePath("42"))
}

func TestCurate_QuarantinesPeople(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	writeFile(t, cat.Root, "43.jpg", "jpeg")

	rep, err := newTestCurator(cat).Curate(context.Background(),
		rowsOf{row("43", "http://example.com/b.jpg", "portrait of a woman indoor")})
	require.NoError(t, err)

	assert.Equal(t, CurationReport{Processed: 1, Quarantined: 1}, rep)
	assert.NoFileExists(t, cat.ActivePath("43"))
	got, err := os.ReadFile(cat.QuarantinePath("43"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(got))
}

func TestCurate_MissingFile(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)

	rep, err := newTestCurator(cat).Curate(context.Background(),
		rowsOf{row("44", "http://example.com/c.jpg", "portrait")})
	require.NoError(t, err)

	assert.Equal(t, CurationReport{Missing: 1}, rep)
	assert.NoFileExists(t, cat.QuarantinePath("44"))
}

func TestCurate_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	writeFile(t, cat.Root, "1.jpg", "a")
	writeFile(t, cat.Root, "2.jpg", "b")
	rows := rowsOf{
		row("1", "sunset over the sea"),
		row("2", "cat on a sofa"),
		row("3", "never downloaded"),
	}
	c := newTestCurator(cat)

	first, err := c.Curate(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Processed: 2, Kept: 1, Quarantined: 1, Missing: 1}, first)

	second, err := c.Curate(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Processed: 1, Kept: 1, Missing: 1, AlreadyCurated: 1}, second)
	assert.Zero(t, second.Quarantined)
	assert.Zero(t, second.Errors)
	assert.FileExists(t, cat.QuarantinePath("2"))
}

func TestCurate_UnsafeIdentifier(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	rep, err := newTestCurator(cat).Curate(context.Background(), rowsOf{row("../etc/passwd", "x")})
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Unparseable: 1}, rep)
}

func TestCurate_FromExport(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	writeFile(t, cat.Root, "42.jpg", "jpeg")
	writeFile(t, cat.Root, "43.jpg", "jpeg")

	path := writeTSV(t, []string{"photo_id", "photo_image_url", "description"},
		[]string{"42", "http://example.com/a.jpg", "mountain lake view"},
		[]string{"43", "http://example.com/b.jpg", "portrait of a woman indoor"},
		[]string{"bad row"},
		[]string{"44", "http://example.com/c.jpg", "beach"},
	)
	src, err := OpenExport(path, ExportOptions{Columns: threeCols, Logger: quietLogger()})
	require.NoError(t, err)

	rep, err := newTestCurator(cat).Curate(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Processed: 2, Kept: 1, Quarantined: 1, Missing: 1, Unparseable: 1}, rep)
}

func TestCurate_EmbeddedMetadataQuarantines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  []byte
	}{
		{"xmp subject", withXMP(makeJPEG(8, 8), xmpPacket("", "portrait"))},
		{"iptc keywords", withIPTC(makeJPEG(8, 8), "Outing", "people", "meadow")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cat := newTestCatalog(t)
			require.NoError(t, os.WriteFile(cat.ActivePath("5"), tt.img, 0o644))

			c := NewCurator(cat, CurateOptions{EmbeddedMetadata: true, Logger: quietLogger()})
			rep, err := c.Curate(context.Background(), rowsOf{row("5", "river bend")})
			require.NoError(t, err)
			assert.Equal(t, CurationReport{Processed: 1, Quarantined: 1}, rep)
			assert.FileExists(t, cat.QuarantinePath("5"))
		})
	}
}

func TestCurate_EmbeddedMetadataIgnoredWhenDisabled(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	img := withXMP(makeJPEG(8, 8), xmpPacket("", "portrait"))
	require.NoError(t, os.WriteFile(cat.ActivePath("6"), img, 0o644))

	rep, err := newTestCurator(cat).Curate(context.Background(), rowsOf{row("6", "river bend")})
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Processed: 1, Kept: 1}, rep)
	assert.FileExists(t, cat.ActivePath("6"))
}

func TestCurate_EmbeddedMetadataOnPlainFile(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	require.NoError(t, os.WriteFile(cat.ActivePath("7"), makeJPEG(8, 8), 0o644))

	c := NewCurator(cat, CurateOptions{EmbeddedMetadata: true, Logger: quietLogger()})
	rep, err := c.Curate(context.Background(), rowsOf{row("7", "river bend")})
	require.NoError(t, err)
	assert.Equal(t, CurationReport{Processed: 1, Kept: 1}, rep)
}

func TestCurate_CustomLists(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	writeFile(t, cat.Root, "8.jpg", "x")

	c := NewCurator(cat, CurateOptions{Blacklist: []string{"  Crane "}, Whitelist: []string{}, Logger: quietLogger()})
	rep, err := c.Curate(context.Background(), rowsOf{row("8", "construction CRANE at dusk")})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Quarantined)
}
