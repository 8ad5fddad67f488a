package imageset

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"
)

// CurateOptions configures a Curator.
type CurateOptions struct {
	Blacklist []string // default: DefaultBlacklist
	Whitelist []string // default: DefaultWhitelist

	// EmbeddedMetadata adds the stored file's descriptive EXIF/IPTC/XMP
	// text to the row text before classification.
	EmbeddedMetadata bool

	Logger  *slog.Logger
	Metrics *Metrics
}

// CurationReport aggregates one curation pass.
type CurationReport struct {
	Processed      int `json:"processed"`       // rows with an active file
	Kept           int `json:"kept"`            // left in place
	Quarantined    int `json:"purged"`          // moved to quarantine
	Missing        int `json:"missing"`         // no file in either root
	AlreadyCurated int `json:"already_curated"` // already in quarantine
	Unparseable    int `json:"unparseable"`     // rows that could not be read
	Errors         int `json:"errors"`          // moves that failed
}

// Curator partitions a populated Catalog into kept and quarantined files.
// One Curator must not run concurrently with another over the same catalog,
// nor with a Harvester writing the same identifiers.
type Curator struct {
	catalog   Catalog
	opts      CurateOptions
	blacklist []string
	whitelist []string
}

// NewCurator returns a curator over catalog.
func NewCurator(catalog Catalog, opts CurateOptions) *Curator {
	if opts.Blacklist == nil {
		opts.Blacklist = DefaultBlacklist
	}
	if opts.Whitelist == nil {
		opts.Whitelist = DefaultWhitelist
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Curator{
		catalog:   catalog,
		opts:      opts,
		blacklist: normalizeTerms(opts.Blacklist),
		whitelist: normalizeTerms(opts.Whitelist),
	}
}

// Curate classifies every row whose identifier has an active file and moves
// quarantined ones. Each row is decided independently, so an interrupted
// pass can be re-run from scratch. Only ctx cancellation and failure to
// create the quarantine root are returned as errors.
func (c *Curator) Curate(ctx context.Context, rows RowSource) (CurationReport, error) {
	var rep CurationReport
	start := time.Now()
	log := c.opts.Logger

	if err := c.catalog.Ensure(); err != nil {
		return rep, err
	}
	log.Info("imageset: curation started", "root", c.catalog.Root, "quarantine", c.catalog.Quarantine)

	for row, err := range rows.Rows(ctx) {
		if err != nil {
			rep.Unparseable++
			continue
		}
		if checkKey(row.ID) != nil {
			log.Debug("imageset: unusable identifier", "id", row.ID)
			rep.Unparseable++
			continue
		}

		switch c.catalog.Locate(row.ID) {
		case LocationNone:
			rep.Missing++
			continue
		case LocationQuarantine:
			rep.AlreadyCurated++
			continue
		}

		rep.Processed++
		var embedded string
		if c.opts.EmbeddedMetadata {
			embedded = ReadEmbeddedMetadata(c.catalog.ActivePath(row.ID)).Text()
		}
		a := c.assess(row.Text(), embedded)

		if a.Verdict == VerdictKeep {
			rep.Kept++
			c.opts.Metrics.observeCuration("keep")
			log.Debug("imageset: keep", "id", row.ID, "signals", len(a.Signals))
			continue
		}

		err = c.catalog.MoveToQuarantine(row.ID)
		switch {
		case err == nil:
			rep.Quarantined++
			c.opts.Metrics.observeCuration("quarantine")
			log.Debug("imageset: quarantined", "id", row.ID, "term", a.Signals[0].Term, "source", a.Signals[0].Source)
		case errors.Is(err, fs.ErrNotExist):
			rep.Processed--
			rep.AlreadyCurated++
		default:
			rep.Errors++
			c.opts.Metrics.observeCuration("error")
			log.Warn("imageset: quarantine failed", "id", row.ID, "error", err.Error())
		}
	}

	log.Info("imageset: curation finished",
		"processed", rep.Processed,
		"kept", rep.Kept,
		"purged", rep.Quarantined,
		"missing", rep.Missing,
		"already_curated", rep.AlreadyCurated,
		"unparseable", rep.Unparseable,
		"errors", rep.Errors,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return rep, ctx.Err()
}
