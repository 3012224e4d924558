// Package config loads qrkit settings from a YAML file, QRKIT_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"slices"
	"strings"
)

// Config is the complete qrkit configuration shared by all commands.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Decoder DecoderConfig `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	Encoder EncoderConfig `mapstructure:"encoder" yaml:"encoder" json:"encoder"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch" json:"batch"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan" json:"scan"`
}

// DecoderConfig controls symbol search.
type DecoderConfig struct {
	Formats      []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder    bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Multi        bool     `mapstructure:"multi" yaml:"multi" json:"multi"`
	TryInverted  bool     `mapstructure:"try_inverted" yaml:"try_inverted" json:"try_inverted"`
	CharacterSet string   `mapstructure:"character_set" yaml:"character_set" json:"character_set"`
	// Larger images are downscaled before decoding.
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height" json:"max_height"`
}

// EncoderConfig holds defaults for generated codes.
type EncoderConfig struct {
	Level        string  `mapstructure:"level" yaml:"level" json:"level"`
	MaxVersion   int     `mapstructure:"max_version" yaml:"max_version" json:"max_version"`
	ModuleSize   int     `mapstructure:"module_size" yaml:"module_size" json:"module_size"`
	Border       int     `mapstructure:"border" yaml:"border" json:"border"`
	Foreground   string  `mapstructure:"foreground" yaml:"foreground" json:"foreground"`
	Background   string  `mapstructure:"background" yaml:"background" json:"background"`
	LogoFraction float64 `mapstructure:"logo_fraction" yaml:"logo_fraction" json:"logo_fraction"`
	ImageFormat  string  `mapstructure:"image_format" yaml:"image_format" json:"image_format"`
}

// OutputConfig controls how decode results are written.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CacheTTLSec     int             `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec" json:"cache_ttl_sec"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig bounds per-client usage of the HTTP API.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	RequestsPerDay    int   `mapstructure:"requests_per_day" yaml:"requests_per_day" json:"requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Pages           string   `mapstructure:"pages" yaml:"pages" json:"pages"`
}

// ScanConfig paces the frame-by-frame scan loop.
type ScanConfig struct {
	IntervalMS  int  `mapstructure:"interval_ms" yaml:"interval_ms" json:"interval_ms"`
	MaxFrames   int  `mapstructure:"max_frames" yaml:"max_frames" json:"max_frames"`
	StopOnFirst bool `mapstructure:"stop_on_first" yaml:"stop_on_first" json:"stop_on_first"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Decoder: DecoderConfig{
			Formats:      []string{},
			TryHarder:    true,
			Multi:        true,
			CharacterSet: "UTF-8",
			MaxWidth:     4096,
			MaxHeight:    4096,
		},
		Encoder: EncoderConfig{
			Level:        "M",
			MaxVersion:   40,
			ModuleSize:   8,
			Border:       4,
			Foreground:   "#000000",
			Background:   "#ffffff",
			LogoFraction: 0.2,
			ImageFormat:  "png",
		},
		Output: OutputConfig{
			Format:       "text",
			OverlayColor: "#00ff00",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			CacheTTLSec:     600,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				RequestsPerDay:    10000,
				MaxDataPerDay:     500 * 1024 * 1024,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			Include:         []string{},
			Exclude:         []string{},
			ContinueOnError: true,
		},
		Scan: ScanConfig{
			IntervalMS:  100,
			StopOnFirst: true,
		},
	}
}

// OutputFormats lists the accepted decode output formats.
var OutputFormats = []string{"text", "json", "csv", "yaml"}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(OutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(OutputFormats, ", "))
	}

	if _, err := c.DecodeOptions(); err != nil {
		return err
	}
	req, err := c.EncodeRequest("validate")
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if err := validateFraction(c.Encoder.LogoFraction, "encoder.logo_fraction"); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Scan.IntervalMS < 0 || c.Scan.MaxFrames < 0 {
		return fmt.Errorf("invalid scan pacing: interval %dms, max frames %d", c.Scan.IntervalMS, c.Scan.MaxFrames)
	}
	return nil
}

// validateFraction checks that value lies in (0, 0.3], the logo sizes the
// encoder accepts.
func validateFraction(value float64, name string) error {
	if value <= 0 || value > 0.3 {
		return fmt.Errorf("invalid %s: %.2f (must be in (0, 0.3])", name, value)
	}
	return nil
}
