package imageset

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeJPEG returns a minimal valid JPEG of the given dimensions.
func makeJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 100, G: 149, B: 237, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic("makeJPEG: " + err.Error())
	}
	return buf.Bytes()
}

// jpegWithSegment splices a marker segment in right after the SOI of img.
func jpegWithSegment(img []byte, marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	out := append([]byte{}, img[:2]...)
	out = append(out, seg...)
	out = append(out, payload...)
	return append(out, img[2:]...)
}

// withXMP returns img with an APP1 XMP packet.
func withXMP(img []byte, packet string) []byte {
	payload := append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...)
	return jpegWithSegment(img, 0xE1, payload)
}

// xmpPacket builds an XMP packet with a photoshop:Headline attribute and
// dc:subject keywords.
func xmpPacket(headline string, subjects ...string) string {
	var b strings.Builder
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`)
	b.WriteString(`<rdf:Description xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:photoshop="http://ns.adobe.com/photoshop/1.0/" photoshop:Headline="`)
	b.WriteString(headline)
	b.WriteString(`"><dc:subject><rdf:Bag>`)
	for _, s := range subjects {
		b.WriteString("<rdf:li>" + s + "</rdf:li>")
	}
	b.WriteString(`</rdf:Bag></dc:subject></rdf:Description></rdf:RDF></x:xmpmeta>`)
	return b.String()
}

// withIPTC returns img with an APP13 Photoshop IRB carrying an IPTC headline
// (2:105) and keywords (2:25).
func withIPTC(img []byte, headline string, keywords ...string) []byte {
	var data []byte
	record := func(dataset byte, value string) {
		data = append(data, 0x1C, 0x02, dataset, 0, 0)
		binary.BigEndian.PutUint16(data[len(data)-2:], uint16(len(value)))
		data = append(data, value...)
	}
	record(105, headline)
	for _, kw := range keywords {
		record(25, kw)
	}
	if len(data)%2 == 1 {
		data = append(data, 0)
	}

	payload := []byte("Photoshop 3.0\x00")
	payload = append(payload, "8BIM"...)
	payload = append(payload, 0x04, 0x04, 0x00, 0x00, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(payload[len(payload)-4:], uint32(len(data)))
	payload = append(payload, data...)
	return jpegWithSegment(img, 0xED, payload)
}

// imageServer serves body for every request and counts hits.
type imageServer struct {
	*httptest.Server
	hits     atomic.Int64
	lastPath atomic.Value // string: RequestURI of the last request
}

func newImageServer(t *testing.T, contentType string, body []byte) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.lastPath.Store(r.URL.RequestURI())
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// quietLogger discards all output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCatalog returns a catalog under a fresh temp dir.
func newTestCatalog(t *testing.T) Catalog {
	t.Helper()
	c := NewCatalog(filepath.Join(t.TempDir(), "HIGH_QUALITY"), "")
	require.NoError(t, c.Ensure())
	return c
}

// writeFile creates name under dir with content.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// writeTSV writes a tab-delimited export with a header and returns its path.
func writeTSV(t *testing.T, header []string, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(strings.Join(r, "\t"))
		b.WriteByte('\n')
	}
	return writeFile(t, t.TempDir(), "photos.tsv000", b.String())
}

// partFiles lists leftover temp files in dir.
func partFiles(t *testing.T, dir string) []string {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, ".*.part"))
	require.NoError(t, err)
	return m
}

func mustRecord(t *testing.T, id int64, rawURL string) ImageRecord {
	t.Helper()
	rec, err := NewImageRecord(id, rawURL, 1080, 720, "Ansel")
	require.NoError(t, err)
	return rec
}
