// Command imageset acquires and curates an image dataset.
//
//	imageset pexels  [flags]   harvest from the Pexels search API (PEXELS_API_KEY)
//	imageset export  [flags]   harvest from a tab-delimited bulk export
//	imageset curate  [flags]   quarantine catalog files whose metadata is blacklisted
//
// Identifiers must be integers. The Unsplash Lite export keys photos by slug,
// so export rejects each of its rows until the id column is made numeric.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/anatolykoptev/go-imageset"
)

const usage = "usage: imageset pexels|export|curate [flags]\n" +
	"  export needs numeric ids; Unsplash Lite photo_id slugs are rejected"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "pexels", "export", "curate":
	default:
		fmt.Fprintln(stderr, usage)
		return 2
	}

	fs, opts := newFlagSet(cmd, stderr)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	log, err := newLogger(stderr, opts.logLevel, opts.logJSON)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log = log.With("run", uuid.NewString(), "command", cmd)

	if err := godotenv.Load(); err != nil {
		log.Debug("imageset: no .env file, using process environment")
	}

	s, err := loadSettings(opts.config)
	if err == nil {
		opts.apply(fs, &s)
		err = s.validate()
	}
	if err != nil {
		log.Error("imageset: invalid settings", "error", err.Error())
		return 1
	}

	metrics := imageset.NewMetrics()
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, metrics, log)
		defer stop()
	}

	switch cmd {
	case "pexels":
		err = runPexels(ctx, s, log, metrics)
	case "export":
		err = runExport(ctx, s, log, metrics)
	case "curate":
		err = runCurate(ctx, s, log, metrics)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("imageset: interrupted")
		return 1
	default:
		log.Error("imageset: "+cmd+" failed", "error", err.Error())
		return 1
	}
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", errConfig, level)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// serveMetrics exposes metrics until the returned stop function is called.
func serveMetrics(addr string, m *imageset.Metrics, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("imageset: metrics server", "addr", addr, "error", err.Error())
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func newEngine(s settings, transform imageset.URLTransform, log *slog.Logger, m *imageset.Metrics) *imageset.Engine {
	return imageset.NewEngine(imageset.Config{
		Catalog:      s.catalog(),
		UserAgent:    s.UserAgent,
		Timeout:      s.Timeout,
		ChunkSize:    s.ChunkSize,
		Transform:    transform,
		VerifyImages: s.VerifyImages,
		Logger:       log,
		Metrics:      m,
	})
}

func newHarvester(s settings, e *imageset.Engine, log *slog.Logger, m *imageset.Metrics) *imageset.Harvester {
	return imageset.NewHarvester(e, imageset.HarvestOptions{
		Workers:      s.Workers,
		Pacer:        s.pacer(),
		MaxDownloads: s.MaxDownloads,
		Logger:       log,
		Metrics:      m,
	})
}

func runPexels(ctx context.Context, s settings, log *slog.Logger, m *imageset.Metrics) error {
	src, err := imageset.NewPexelsSource(os.Getenv("PEXELS_API_KEY"), s.Pexels.Queries)
	if err != nil {
		return fmt.Errorf("%w: PEXELS_API_KEY: %w", errConfig, err)
	}
	src.PerPage = s.Pexels.PerPage
	src.Orientation = s.Pexels.Orientation
	src.MaxPages = s.Pexels.MaxPages
	src.UserAgent = s.UserAgent
	src.Logger = log
	src.Metrics = m

	if err := s.catalog().Ensure(); err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	h := newHarvester(s, newEngine(s, imageset.IdentityTransform, log, m), log, m)
	rep, err := h.Harvest(ctx, src)
	log.Info("imageset: report", "report", rep)
	return err
}

func openExport(s settings, log *slog.Logger, m *imageset.Metrics) (*imageset.ExportSource, error) {
	src, err := imageset.OpenExport(s.Metadata, imageset.ExportOptions{
		Columns: s.Export.Columns,
		Limit:   s.Export.Limit,
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return src, nil
}

func runExport(ctx context.Context, s settings, log *slog.Logger, m *imageset.Metrics) error {
	src, err := openExport(s, log, m)
	if err != nil {
		return err
	}
	if err := s.catalog().Ensure(); err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	var transform imageset.URLTransform = imageset.IdentityTransform
	if s.Export.ResizeWidth > 0 {
		transform = imageset.ResizeTransform(s.Export.ResizeWidth, s.Export.ResizeQuality)
	}
	h := newHarvester(s, newEngine(s, transform, log, m), log, m)
	rep, err := h.Harvest(ctx, src)
	log.Info("imageset: report", "report", rep)
	return err
}

func runCurate(ctx context.Context, s settings, log *slog.Logger, m *imageset.Metrics) error {
	src, err := openExport(s, log, m)
	if err != nil {
		return err
	}
	c := imageset.NewCurator(s.catalog(), imageset.CurateOptions{
		Blacklist:        s.Curate.Blacklist,
		Whitelist:        s.Curate.Whitelist,
		EmbeddedMetadata: s.Curate.EmbeddedMetadata,
		Logger:           log,
		Metrics:          m,
	})
	rep, err := c.Curate(ctx, src)
	log.Info("imageset: report", "report", rep)
	return err
}
