package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/go-imageset"
)

// errConfig marks failures that must end the process before any work.
var errConfig = errors.New("configuration error")

// settings is the YAML settings file. Fields left out of the file keep
// their defaults; flags override both.
type settings struct {
	Root       string `yaml:"root"`
	Quarantine string `yaml:"quarantine"` // default: {root}/QUARANTINE
	Metadata   string `yaml:"metadata"`   // export file for export and curate

	Workers       int           `yaml:"workers"`
	CourtesyDelay time.Duration `yaml:"courtesy_delay"`
	RateInterval  time.Duration `yaml:"rate_interval"` // > 0 selects the token bucket pacer
	RateBurst     int           `yaml:"rate_burst"`
	Timeout       time.Duration `yaml:"timeout"`
	ChunkSize     int           `yaml:"chunk_size"`
	MaxDownloads  int           `yaml:"max_downloads"`
	VerifyImages  bool          `yaml:"verify_images"`
	UserAgent     string        `yaml:"user_agent"`

	Pexels pexelsSettings `yaml:"pexels"`
	Export exportSettings `yaml:"export"`
	Curate curateSettings `yaml:"curate"`
}

type pexelsSettings struct {
	Queries     []string `yaml:"queries"`
	PerPage     int      `yaml:"per_page"`
	Orientation string   `yaml:"orientation"`
	MaxPages    int      `yaml:"max_pages"`
}

type exportSettings struct {
	Columns       imageset.ExportColumns `yaml:"columns"`
	Limit         int                    `yaml:"limit"`
	ResizeWidth   int                    `yaml:"resize_width"` // 0 disables the resize transform
	ResizeQuality int                    `yaml:"resize_quality"`
}

type curateSettings struct {
	Blacklist        []string `yaml:"blacklist"`
	Whitelist        []string `yaml:"whitelist"`
	EmbeddedMetadata bool     `yaml:"embedded_metadata"`
}

func defaultSettings() settings {
	return settings{
		Root:          "HIGH_QUALITY",
		Metadata:      "photos.tsv000",
		Workers:       imageset.DefaultWorkers,
		CourtesyDelay: imageset.DefaultCourtesyDelay,
		RateBurst:     1,
		Timeout:       imageset.DefaultTimeout,
		ChunkSize:     imageset.DefaultChunkSize,
		Pexels: pexelsSettings{
			Queries:     imageset.DefaultPexelsQueries,
			PerPage:     10,
			Orientation: "landscape",
			MaxPages:    1,
		},
		Export: exportSettings{
			Columns:       imageset.UnsplashColumns,
			ResizeWidth:   1080,
			ResizeQuality: 80,
		},
		Curate: curateSettings{
			Blacklist: imageset.DefaultBlacklist,
			Whitelist: imageset.DefaultWhitelist,
		},
	}
}

// loadSettings reads path over the defaults. An empty path means defaults only.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("%w: %w", errConfig, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("%w: parse %s: %w", errConfig, path, err)
	}
	return s, nil
}

func (s settings) validate() error {
	var problems []string
	if strings.TrimSpace(s.Root) == "" {
		problems = append(problems, "root is empty")
	}
	if s.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if s.CourtesyDelay < 0 || s.RateInterval < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if s.MaxDownloads < 0 {
		problems = append(problems, "max_downloads must not be negative")
	}
	if s.Export.ResizeWidth < 0 || s.Export.ResizeQuality < 0 || s.Export.ResizeQuality > 100 {
		problems = append(problems, "resize_width and resize_quality are out of range")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errConfig, strings.Join(problems, "; "))
	}
	return nil
}

// options are the command-line flags shared by every subcommand.
type options struct {
	config      string
	logLevel    string
	logJSON     bool
	metricsAddr string

	root         string
	quarantine   string
	metadata     string
	workers      int
	maxDownloads int
	verify       bool
	embedded     bool
}

func newFlagSet(name string, out io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.config, "config", os.Getenv("IMAGESET_CONFIG"), "path to YAML settings file")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&o.logJSON, "log-json", false, "log as JSON")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics on this address during the run")

	fs.StringVar(&o.root, "root", "", "active catalog directory")
	fs.StringVar(&o.quarantine, "quarantine", "", "quarantine directory")
	fs.StringVar(&o.metadata, "metadata", "", "tab-delimited metadata export")
	fs.IntVar(&o.workers, "workers", 0, "concurrent downloads")
	fs.IntVar(&o.maxDownloads, "max", 0, "stop after this many downloads (0 = unlimited)")
	fs.BoolVar(&o.verify, "verify", false, "reject downloads that do not decode as images")
	fs.BoolVar(&o.embedded, "embedded", false, "include embedded EXIF/IPTC/XMP text when curating")
	return fs, o
}

// apply copies the flags that were set on the command line over s.
func (o *options) apply(fs *flag.FlagSet, s *settings) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			s.Root = o.root
		case "quarantine":
			s.Quarantine = o.quarantine
		case "metadata":
			s.Metadata = o.metadata
		case "workers":
			s.Workers = o.workers
		case "max":
			s.MaxDownloads = o.maxDownloads
		case "verify":
			s.VerifyImages = o.verify
		case "embedded":
			s.Curate.EmbeddedMetadata = o.embedded
		}
	})
}

// pacer picks the courtesy policy described by s.
func (s settings) pacer() imageset.Pacer {
	if s.RateInterval > 0 {
		return imageset.NewTokenBucket(s.RateInterval, s.RateBurst)
	}
	return imageset.FixedDelay(s.CourtesyDelay)
}

func (s settings) catalog() imageset.Catalog {
	return imageset.NewCatalog(s.Root, s.Quarantine)
}
