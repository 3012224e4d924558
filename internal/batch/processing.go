package batch

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/pdf"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// FileResult holds the symbols found in one image. PDF inputs produce one
// FileResult per embedded image, with Page and Image set.
type FileResult struct {
	File    string           `json:"file"              yaml:"file"`
	Page    int              `json:"page,omitempty"    yaml:"page,omitempty"`
	Image   int              `json:"image,omitempty"   yaml:"image,omitempty"`
	Width   int              `json:"width"             yaml:"width"`
	Height  int              `json:"height"            yaml:"height"`
	Symbols []barcode.Symbol `json:"symbols"           yaml:"symbols"`
	Overlay string           `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	Error   string           `json:"error,omitempty"   yaml:"error,omitempty"`
}

// Failed reports whether the input could not be decoded.
func (r FileResult) Failed() bool { return r.Error != "" }

// processFile decodes a single input file.
func processFile(ctx context.Context, path string, cfg *Config) ([]FileResult, error) {
	if isPDF(path) {
		return processPDF(ctx, path, cfg)
	}

	img, meta, err := utils.LoadImageWithin(path, cfg.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	res := FileResult{File: path, Width: meta.Width, Height: meta.Height, Symbols: []barcode.Symbol{}}
	symbols, err := barcode.DecodeWithin(ctx, img, cfg.Decode, cfg.Constraints)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	res.Symbols = append(res.Symbols, symbols...)

	if cfg.OverlayDir != "" {
		out, err := saveOverlay(img, symbols, overlayName(path), cfg.OverlayDir, cfg.OverlayColor)
		if err != nil {
			return nil, err
		}
		res.Overlay = out
	}
	return []FileResult{res}, nil
}

// processPDF decodes the embedded images of a PDF document.
func processPDF(ctx context.Context, path string, cfg *Config) ([]FileResult, error) {
	proc := pdf.NewProcessor(&pdf.ProcessorConfig{
		Decode:      cfg.Decode,
		Credentials: cfg.Credentials,
		MaxWorkers:  1,
		Constraints: cfg.Constraints,
	})
	doc, err := proc.ProcessFile(ctx, path, cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("pdf %s: %w", path, err)
	}

	var out []FileResult
	for _, page := range doc.Pages {
		for _, img := range page.Images {
			out = append(out, FileResult{
				File:    path,
				Page:    page.PageNumber,
				Image:   img.ImageIndex,
				Width:   img.Width,
				Height:  img.Height,
				Symbols: img.Symbols,
				Error:   img.Error,
			})
		}
	}
	if len(out) == 0 {
		out = append(out, FileResult{File: path, Symbols: []barcode.Symbol{}})
	}
	return out, nil
}

func overlayName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_overlay.png"
}

// saveOverlay draws the symbols onto a copy of img and writes it to dir.
func saveOverlay(img image.Image, symbols []barcode.Symbol, name, dir string, col color.Color) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create overlay dir: %w", err)
	}
	opts := barcode.DefaultAnnotateOptions()
	opts.Color = col
	out := filepath.Join(dir, name)
	if err := utils.SaveImage(out, barcode.Annotate(img, symbols, opts)); err != nil {
		return "", err
	}
	return out, nil
}
