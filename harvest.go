package imageset

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// HarvestOptions configures a Harvester.
type HarvestOptions struct {
	Workers      int   // concurrent acquisitions (default: 4)
	Pacer        Pacer // courtesy policy (default: FixedDelay(500ms))
	MaxDownloads int   // stop feeding after this many successes (0 = unlimited)
	Logger       *slog.Logger
	Metrics      *Metrics
}

// AcquireReport aggregates one acquisition pass.
type AcquireReport struct {
	Records      int64 `json:"records"`       // records handed to workers
	Rejected     int64 `json:"rejected"`      // failed validation
	Succeeded    int64 `json:"succeeded"`     // downloaded
	Skipped      int64 `json:"skipped"`       // already in catalog
	Failed       int64 `json:"failed"`        // network, status or filesystem error
	SourceErrors int64 `json:"source_errors"` // failed source pages
	Unparseable  int64 `json:"unparseable"`   // malformed export rows
}

// Harvester feeds a MetadataSource through Validate into an Engine on a
// bounded worker pool. The source is drained on the calling goroutine.
type Harvester struct {
	engine *Engine
	opts   HarvestOptions
}

// NewHarvester returns a harvester writing through engine.
func NewHarvester(engine *Engine, opts HarvestOptions) *Harvester {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Pacer == nil {
		opts.Pacer = FixedDelay(DefaultCourtesyDelay)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Harvester{engine: engine, opts: opts}
}

type harvestCounters struct {
	records, rejected, succeeded, skipped, failed, sourceErrors, unparseable atomic.Int64
}

// pending is the number of records that succeeded or may still succeed.
func (c *harvestCounters) pending() int64 {
	return c.records.Load() - c.rejected.Load() - c.skipped.Load() - c.failed.Load()
}

func (c *harvestCounters) report() AcquireReport {
	return AcquireReport{
		Records:      c.records.Load(),
		Rejected:     c.rejected.Load(),
		Succeeded:    c.succeeded.Load(),
		Skipped:      c.skipped.Load(),
		Failed:       c.failed.Load(),
		SourceErrors: c.sourceErrors.Load(),
		Unparseable:  c.unparseable.Load(),
	}
}

// Harvest runs one acquisition pass over src. Record-level problems only
// show up in the report; the returned error is ctx.Err() when the pass was
// cancelled. Every record handed to a worker reaches a terminal outcome
// before Harvest returns.
func (h *Harvester) Harvest(ctx context.Context, src MetadataSource) (AcquireReport, error) {
	start := time.Now()
	log := h.opts.Logger.With("source", src.Name())
	log.Info("imageset: harvest started", "workers", h.opts.Workers)

	var c harvestCounters
	var g errgroup.Group
	g.SetLimit(h.opts.Workers)

	for raw, err := range src.Records(ctx) {
		if err != nil {
			if errors.Is(err, ErrUnparseableRow) {
				c.unparseable.Add(1)
			} else {
				c.sourceErrors.Add(1)
			}
			continue
		}
		if limit := int64(h.opts.MaxDownloads); limit > 0 && c.pending() >= limit {
			// In-flight records could still reach the cap; settle them first.
			_ = g.Wait()
			if c.succeeded.Load() >= limit {
				log.Info("imageset: download cap reached", "max", limit)
				break
			}
		}
		c.records.Add(1)
		g.Go(func() error {
			h.process(ctx, raw, &c)
			return nil
		})
	}
	_ = g.Wait()

	rep := c.report()
	log.Info("imageset: harvest finished",
		"records", rep.Records,
		"rejected", rep.Rejected,
		"succeeded", rep.Succeeded,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"source_errors", rep.SourceErrors,
		"unparseable", rep.Unparseable,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return rep, ctx.Err()
}

// process validates and acquires a single record.
func (h *Harvester) process(ctx context.Context, raw RawRecord, c *harvestCounters) {
	rec, err := Validate(raw)
	if err != nil {
		c.rejected.Add(1)
		var rej *RejectionError
		if errors.As(err, &rej) {
			h.opts.Metrics.observeRejection(rej.Field)
		}
		h.opts.Logger.Warn("imageset: invalid record", "id", raw[FieldID], "error", err.Error())
		return
	}

	res := h.engine.Acquire(ctx, rec)
	switch res.Outcome {
	case OutcomeSuccess:
		c.succeeded.Add(1)
	case OutcomeSkipped:
		c.skipped.Add(1)
	default:
		c.failed.Add(1)
	}

	if err := h.opts.Pacer.Pace(ctx, res.Outcome); err != nil && ctx.Err() == nil {
		h.opts.Logger.Debug("imageset: pacer", "error", err.Error())
	}
}
