package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/batch"
	"github.com/MeKo-Tech/qrkit/internal/pdf"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
)

func newDecodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [files...]",
		Short: "Decode barcodes in images and PDFs",
		Long: `Decode every QR, Data Matrix and 1D barcode found in the given images or PDFs.
Directories are scanned for supported files (not recursively; see batch).

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP, PDF

Examples:
  qrkit decode label.png
  qrkit decode page.jpg --formats qr,ean13 --format json
  qrkit decode invoice.pdf --pages 1-2
  qrkit decode photo.jpg --first --overlay-dir out/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.batchConfig(cmd)
			if err != nil {
				return err
			}
			return runDecode(cmd, args, cfg, false)
		},
	}
	addDecodeFlags(cmd)
	return cmd
}

// addDecodeFlags registers the flags shared by decode and batch.
func addDecodeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", "text", "output format: text, json, csv, yaml")
	f.StringP("output", "o", "", "write results to file instead of stdout")
	f.String("formats", "", "comma-separated symbologies to look for (e.g. qr,code128); empty means all")
	f.Bool("try-inverted", false, "also try the inverted image (light codes on dark backgrounds)")
	f.Bool("first", false, "report at most one symbol per image")
	f.String("overlay-dir", "", "write annotated copies of each image to this directory")
	f.String("overlay-color", "", "overlay colour (hex)")
	f.String("pages", "", "PDF page range, e.g. 1-3,5")
	f.String("password", "", "password for encrypted PDFs")
	f.IntP("workers", "w", 0, "number of parallel workers (0 = number of CPUs)")
}

// batchConfig maps the loaded configuration plus changed flags to a batch
// configuration.
func (a *app) batchConfig(cmd *cobra.Command) (*batch.Config, error) {
	cfg, err := batch.FromAppConfig(a.config())
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()

	if f.Changed("format") {
		cfg.Format, _ = f.GetString("format")
	}
	if f.Changed("output") {
		cfg.OutputFile, _ = f.GetString("output")
	}
	if f.Changed("formats") {
		v, _ := f.GetString("formats")
		if cfg.Decode.Formats, err = barcode.ParseFormats(splitList(v)); err != nil {
			return nil, err
		}
	}
	if f.Changed("try-inverted") {
		cfg.Decode.TryInverted, _ = f.GetBool("try-inverted")
	}
	if first, _ := f.GetBool("first"); first {
		cfg.Decode.Multi = false
	}
	if f.Changed("overlay-dir") {
		cfg.OverlayDir, _ = f.GetString("overlay-dir")
	}
	if f.Changed("overlay-color") {
		v, _ := f.GetString("overlay-color")
		if cfg.OverlayColor, err = qrgen.ParseColor(v); err != nil {
			return nil, err
		}
	}
	if f.Changed("pages") {
		cfg.Pages, _ = f.GetString("pages")
	}
	if pw, _ := f.GetString("password"); pw != "" {
		cfg.Credentials = &pdf.Credentials{UserPassword: pw}
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	return cfg, nil
}

func runDecode(cmd *cobra.Command, args []string, cfg *batch.Config, stats bool) error {
	res, err := batch.Run(cmd.Context(), args, cfg)
	if err != nil {
		if errors.Is(err, batch.ErrNoFiles) {
			return fmt.Errorf("%w in %s", err, strings.Join(args, ", "))
		}
		return err
	}

	if err := res.SaveResults(cmd.OutOrStdout(), cfg.Format, cfg.OutputFile); err != nil {
		return err
	}
	if cfg.OutputFile != "" {
		slog.Info("Results written", "file", cfg.OutputFile, "format", cfg.Format)
	}
	if stats {
		res.PrintStats(cmd.ErrOrStderr())
	}

	s := res.Stats()
	slog.Debug("Decode finished", "images", s.Images, "symbols", s.Symbols, "failed", s.Failed)
	if s.Failed > 0 && s.Failed == s.Images {
		return fmt.Errorf("all %d images failed to decode", s.Failed)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
