// Package imageset builds a curated image dataset from external photo
// catalogs: it reads candidate records from a metadata source, validates
// them, downloads each image into a local catalog exactly once, and moves
// images whose metadata matches a keyword blacklist into quarantine.
package imageset

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the idle bound of a single fetch.
	DefaultTimeout = 20 * time.Second

	// DefaultChunkSize is the buffer used to stream response bodies to disk.
	DefaultChunkSize = 8 * 1024

	// DefaultCourtesyDelay is the pause after every successful fetch.
	DefaultCourtesyDelay = 500 * time.Millisecond

	// DefaultWorkers is the number of concurrent acquisitions.
	DefaultWorkers = 4

	defaultUserAgent = "Mozilla/5.0 (compatible; go-imageset/1.0)"
)

// URLTransform rewrites a record URL right before it is fetched.
// Sources that support server-side resizing use it to bound bandwidth.
type URLTransform func(rawURL string) string

// Config holds paths, clients and limits shared by the engine and curator.
type Config struct {
	Catalog Catalog // active and quarantine roots (required)

	HTTPClient    *http.Client  // optional: default http client (nil = http.DefaultClient)
	StealthClient *http.Client  // optional: tried first, falls back to HTTPClient
	UserAgent     string        // default: "Mozilla/5.0 (compatible; go-imageset/1.0)"
	Timeout       time.Duration // connect/headers bound and per-read idle bound, not a total deadline
	ChunkSize     int

	// Transform decorates record URLs before fetching (nil = identity).
	Transform URLTransform

	// VerifyImages rejects downloads whose content does not decode as an image.
	VerifyImages bool

	Logger  *slog.Logger // default: slog.Default()
	Metrics *Metrics     // optional
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Transform == nil {
		c.Transform = IdentityTransform
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
