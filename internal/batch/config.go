package batch

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/pdf"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// Config holds all configuration for batch decoding.
type Config struct {
	Decode      barcode.Options
	Constraints utils.ImageConstraints

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// PDF settings
	Pages       string
	Credentials *pdf.Credentials

	// Output settings
	Format       string
	OutputFile   string
	OverlayDir   string
	OverlayColor color.Color

	// Progress settings
	Progress ProgressCallback
}

// DefaultConfig returns a configuration with library defaults.
func DefaultConfig() *Config {
	return &Config{
		Decode:          barcode.DefaultOptions(),
		Constraints:     utils.DefaultImageConstraints(),
		Workers:         runtime.NumCPU(),
		ContinueOnError: true,
		Format:          "text",
		OverlayColor:    color.RGBA{0, 255, 0, 255},
	}
}

// FromAppConfig builds a batch configuration from the application config.
func FromAppConfig(cfg *config.Config) (*Config, error) {
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return nil, err
	}
	overlay, err := qrgen.ParseColor(cfg.Output.OverlayColor)
	if err != nil {
		return nil, fmt.Errorf("output.overlay_color: %w", err)
	}
	return &Config{
		Decode:          opts,
		Constraints:     cfg.ImageConstraints(),
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
		Pages:           cfg.Batch.Pages,
		Format:          cfg.Output.Format,
		OutputFile:      cfg.Output.File,
		OverlayDir:      cfg.Output.OverlayDir,
		OverlayColor:    overlay,
	}, nil
}

// Validate checks the configuration and fills zero values.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if !isValidFormat(c.Format) {
		return fmt.Errorf("unsupported output format %q", c.Format)
	}
	if c.OverlayColor == nil {
		c.OverlayColor = color.RGBA{0, 255, 0, 255}
	}
	for _, p := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if _, err := pdf.ParsePageRange(c.Pages); err != nil {
		return fmt.Errorf("invalid page range: %w", err)
	}
	if c.Constraints == (utils.ImageConstraints{}) {
		c.Constraints = utils.DefaultImageConstraints()
	}
	return nil
}

// ErrNoFiles is returned when discovery finds nothing to decode.
var ErrNoFiles = errors.New("no image or PDF files found")

// Result holds the result of a batch run.
type Result struct {
	Files       []FileResult
	Inputs      []string
	Duration    time.Duration
	WorkerCount int
}
