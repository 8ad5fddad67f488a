package imageset

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

// Outcome is the terminal state of one acquisition.
type Outcome int

const (
	OutcomeSuccess Outcome = iota // fetched and stored
	OutcomeSkipped                // already present, no network call
	OutcomeFailed                 // network, status or filesystem error
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// ErrBadStatus is wrapped by failures caused by a non-200 response.
var ErrBadStatus = errors.New("imageset: unexpected response status")

// ErrNotImageContent is wrapped when a 200 response does not declare an
// image/* Content-Type, such as an HTML rate-limit page.
var ErrNotImageContent = errors.New("imageset: response is not image content")

// ErrStalled is wrapped when no response or body bytes arrive within
// Config.Timeout.
var ErrStalled = errors.New("imageset: transfer stalled")

// errNotImage is wrapped when VerifyImages is set and the body does not decode.
var errNotImage = errors.New("imageset: downloaded content is not a decodable image")

// Result describes what Acquire did for one record.
type Result struct {
	ID      int64
	Outcome Outcome
	Path    string // active path of the record
	Bytes   int64  // bytes written on success
	Err     error  // cause of OutcomeFailed
}

// Engine stores validated records in a Catalog. Each call to Acquire
// is a single attempt; concurrent calls are safe for distinct identifiers.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine over cfg.Catalog.
func NewEngine(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// Catalog returns the catalog the engine writes to.
func (e *Engine) Catalog() Catalog { return e.cfg.Catalog }

// Acquire ensures a complete file for rec exists in the catalog.
//
// A non-empty file for the identifier in either root means OutcomeSkipped
// and no request is made. Otherwise the body is streamed into a temp file
// beside the destination and renamed into place only once it is complete,
// so the deterministic path never holds a partial download.
func (e *Engine) Acquire(ctx context.Context, rec ImageRecord) Result {
	key := rec.Key()
	dst := e.cfg.Catalog.ActivePath(key)
	res := Result{ID: rec.ID(), Path: dst}
	log := e.cfg.Logger.With("id", rec.ID())

	if loc := e.cfg.Catalog.Locate(key); loc != LocationNone {
		log.Debug("imageset: already in catalog", "location", loc.String())
		res.Outcome = OutcomeSkipped
		e.cfg.Metrics.observeResult(res)
		return res
	}

	target := e.cfg.Transform(rec.URL())
	n, err := e.fetch(ctx, target, dst)
	if err != nil {
		log.Warn("imageset: download failed", "url", target, "error", err.Error())
		res.Outcome = OutcomeFailed
		res.Err = err
		e.cfg.Metrics.observeResult(res)
		return res
	}

	log.Debug("imageset: downloaded", "url", target, "bytes", n)
	res.Outcome = OutcomeSuccess
	res.Bytes = n
	e.cfg.Metrics.observeResult(res)
	return res
}

// fetch streams imageURL into dst atomically and returns the byte count.
// cfg.Timeout is an idle bound: it covers connect and response headers and
// restarts on every body read that returns data, so a slow transfer that keeps
// making progress is never cut off.
func (e *Engine) fetch(ctx context.Context, imageURL, dst string) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	idle := time.AfterFunc(e.cfg.Timeout, func() { cancel(ErrStalled) })
	defer idle.Stop()

	resp, err := e.open(ctx, imageURL)
	if err != nil {
		return 0, stallCause(ctx, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("imageset: create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("imageset: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buf := make([]byte, e.cfg.ChunkSize)
	body := &idleReader{r: resp.Body, timer: idle, d: e.cfg.Timeout}
	n, err := io.CopyBuffer(onlyWriter{tmp}, body, buf)
	if err != nil {
		return n, fmt.Errorf("imageset: stream body: %w", stallCause(ctx, err))
	}
	if n == 0 {
		return 0, fmt.Errorf("imageset: stream body: %w", io.ErrUnexpectedEOF)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("imageset: sync temp file: %w", err)
	}
	if e.cfg.VerifyImages {
		if err := verifyImage(tmp); err != nil {
			return n, err
		}
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("imageset: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return n, fmt.Errorf("imageset: commit %s: %w", filepath.Base(dst), err)
	}
	committed = true
	return n, nil
}

// open issues the GET. cfg.StealthClient is tried first (if set); a transport
// error or non-200 from it falls back to cfg.HTTPClient.
func (e *Engine) open(ctx context.Context, imageURL string) (*http.Response, error) {
	if e.cfg.StealthClient != nil {
		resp, err := e.get(ctx, e.cfg.StealthClient, imageURL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		e.cfg.Logger.Debug("imageset: stealth client failed, falling back", "url", imageURL, "error", err.Error())
	}
	return e.get(ctx, e.cfg.HTTPClient, imageURL)
}

func (e *Engine) get(ctx context.Context, client *http.Client, imageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("imageset: build request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := client.Do(req) //nolint:gosec // G107: URL comes from a validated record
	if err != nil {
		return nil, fmt.Errorf("imageset: request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	// "image/jpeg; charset=binary" -> "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(ct)
	if !strings.HasPrefix(ct, "image/") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotImageContent, ct)
	}
	return resp, nil
}

// stallCause attaches ErrStalled to err when the idle timer ended the transfer.
func stallCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrStalled) && !errors.Is(err, ErrStalled) {
		return fmt.Errorf("%w: %w", ErrStalled, err)
	}
	return err
}

// verifyImage decodes the image header of f from the start.
func verifyImage(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("imageset: rewind temp file: %w", err)
	}
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%w: %v", errNotImage, err)
	}
	return nil
}

// onlyWriter hides ReadFrom so io.CopyBuffer actually uses the fixed-size
// buffer. idleReader has no WriteTo for the same reason.
type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }

// idleReader restarts timer after every read that returns data.
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	d     time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.d)
	}
	return n, err
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
