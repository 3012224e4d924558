package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"decoder format", func(c *Config) { c.Decoder.Formats = []string{"maxicode"} }, "decoder.formats"},
		{"encoder level", func(c *Config) { c.Encoder.Level = "Z" }, "encoder.level"},
		{"encoder colour", func(c *Config) { c.Encoder.Foreground = "#12" }, "encoder.foreground"},
		{"image format", func(c *Config) { c.Encoder.ImageFormat = "jpeg" }, "encoder.image_format"},
		{"module size", func(c *Config) { c.Encoder.ModuleSize = -1 }, "module size"},
		{"logo fraction", func(c *Config) { c.Encoder.LogoFraction = 0.5 }, "logo_fraction"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
		{"scan", func(c *Config) { c.Scan.IntervalMS = -5 }, "scan pacing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decoder.Formats = []string{"qr", "EAN-13"}
	cfg.Decoder.TryInverted = true
	opts, err := cfg.DecodeOptions()
	require.NoError(t, err)
	assert.Equal(t, []barcode.Format{barcode.FormatQR, barcode.FormatEAN13}, opts.Formats)
	assert.True(t, opts.TryHarder)
	assert.True(t, opts.Multi)
	assert.True(t, opts.TryInverted)
	assert.Equal(t, "UTF-8", opts.CharacterSet)
}

func TestEncodeRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoder.Level = "high"
	cfg.Encoder.Foreground = "navy"
	req, err := cfg.EncodeRequest("PAYLOAD")
	require.NoError(t, err)
	assert.Equal(t, "PAYLOAD", req.Payload)
	assert.Equal(t, qrgen.LevelH, req.Level)
	assert.Equal(t, 8, req.ModuleSize)
	assert.Equal(t, 4, req.Border)
	assert.Equal(t, "#000080", qrgen.FormatColor(req.Foreground))
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.ScanInterval())
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 4096, cfg.ImageConstraints().MaxWidth)
}
