package config

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// DecodeOptions converts the decoder section to barcode.Options.
func (c *Config) DecodeOptions() (barcode.Options, error) {
	formats, err := barcode.ParseFormats(c.Decoder.Formats)
	if err != nil {
		return barcode.Options{}, fmt.Errorf("decoder.formats: %w", err)
	}
	return barcode.Options{
		Formats:      formats,
		TryHarder:    c.Decoder.TryHarder,
		Multi:        c.Decoder.Multi,
		TryInverted:  c.Decoder.TryInverted,
		CharacterSet: c.Decoder.CharacterSet,
	}, nil
}

// ImageConstraints returns the size limits applied before decoding.
func (c *Config) ImageConstraints() utils.ImageConstraints {
	cons := utils.DefaultImageConstraints()
	cons.MaxWidth = c.Decoder.MaxWidth
	cons.MaxHeight = c.Decoder.MaxHeight
	return cons
}

// EncodeRequest builds a QR request for payload from the encoder section.
func (c *Config) EncodeRequest(payload string) (qrgen.Request, error) {
	level, err := qrgen.ParseLevel(c.Encoder.Level)
	if err != nil {
		return qrgen.Request{}, fmt.Errorf("encoder.level: %w", err)
	}
	fg, err := qrgen.ParseColor(c.Encoder.Foreground)
	if err != nil {
		return qrgen.Request{}, fmt.Errorf("encoder.foreground: %w", err)
	}
	bg, err := qrgen.ParseColor(c.Encoder.Background)
	if err != nil {
		return qrgen.Request{}, fmt.Errorf("encoder.background: %w", err)
	}
	if _, err := qrgen.NormalizeImageFormat(c.Encoder.ImageFormat); err != nil {
		return qrgen.Request{}, fmt.Errorf("encoder.image_format: %w", err)
	}
	return qrgen.Request{
		Payload:      payload,
		Level:        level,
		MaxVersion:   c.Encoder.MaxVersion,
		ModuleSize:   c.Encoder.ModuleSize,
		Border:       c.Encoder.Border,
		Foreground:   fg,
		Background:   bg,
		LogoFraction: c.Encoder.LogoFraction,
	}, nil
}

// ScanInterval is the pause between frames of a scan loop.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalMS) * time.Millisecond
}

// CacheTTL is the lifetime of cached encode results.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Server.CacheTTLSec) * time.Second
}
