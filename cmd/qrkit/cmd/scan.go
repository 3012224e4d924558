package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

var errNoMatch = errors.New("no code found")

// scanLine is one JSON line of scan output.
type scanLine struct {
	Frame     int              `json:"frame"`
	File      string           `json:"file"`
	Found     bool             `json:"found"`
	Symbols   []barcode.Symbol `json:"symbols"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Error     string           `json:"error,omitempty"`
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [frames...]",
		Short: "Decode a sequence of frames until a code is found",
		Long: `Treat the given images as consecutive camera frames and decode them one at a
time. By default scanning stops at the first frame that yields a code; --all
reports every frame. Directories contribute their images in name order.

Exits with an error when no frame contains a code.

Examples:
  qrkit scan frames/
  qrkit scan frames/ --all --format json
  qrkit scan f1.png f2.png f3.png --interval 200ms`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args)
		},
	}
	f := cmd.Flags()
	f.Bool("all", false, "decode every frame instead of stopping at the first match")
	f.Duration("interval", 0, "minimum time between frames")
	f.Int("max-frames", 0, "stop after this many frames (0 = no limit)")
	f.StringP("format", "f", "text", "output format: text or json (one object per line)")
	f.String("formats", "", "comma-separated symbologies to look for")
	return cmd
}

// expandFrames lists image files, replacing each directory by its images in
// name order.
func expandFrames(args []string) ([]string, error) {
	var frames []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			frames = append(frames, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && utils.IsSupportedImage(e.Name()) {
				names = append(names, filepath.Join(arg, e.Name()))
			}
		}
		slices.Sort(names)
		frames = append(frames, names...)
	}
	if len(frames) == 0 {
		return nil, errors.New("no frames to scan")
	}
	return frames, nil
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	frames, err := expandFrames(args)
	if err != nil {
		return err
	}
	cfg := a.config()
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if v, _ := f.GetString("formats"); v != "" {
		if opts.Formats, err = barcode.ParseFormats(splitList(v)); err != nil {
			return err
		}
	}

	scanner := &scan.Scanner{
		Options:     opts,
		Interval:    cfg.ScanInterval(),
		MaxFrames:   cfg.Scan.MaxFrames,
		Constraints: cfg.ImageConstraints(),
	}
	if f.Changed("interval") {
		scanner.Interval, _ = f.GetDuration("interval")
	}
	if f.Changed("max-frames") {
		scanner.MaxFrames, _ = f.GetInt("max-frames")
	}
	stopOnFirst := cfg.Scan.StopOnFirst
	if f.Changed("all") {
		all, _ := f.GetBool("all")
		stopOnFirst = !all
	}
	format, _ := f.GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported scan output format %q", format)
	}

	out := cmd.OutOrStdout()
	src := scan.NewFileSource(frames...)

	if stopOnFirst {
		start := time.Now()
		sym, frame, ok, err := scanner.FirstMatch(cmd.Context(), src)
		if err != nil {
			return err
		}
		if !ok {
			return errNoMatch
		}
		return writeScanLine(out, format, scanLine{
			Frame: frame, File: frames[frame], Found: true,
			Symbols: []barcode.Symbol{sym}, ElapsedMs: time.Since(start).Milliseconds(),
		})
	}

	found := false
	for at := range scanner.Attempts(cmd.Context(), src) {
		line := scanLine{Frame: at.Index, Found: at.Found(), Symbols: at.Symbols, ElapsedMs: at.Elapsed.Milliseconds()}
		if at.Index < len(frames) {
			line.File = frames[at.Index]
		}
		if at.Err != nil {
			line.Error = at.Err.Error()
		}
		if line.Symbols == nil {
			line.Symbols = []barcode.Symbol{}
		}
		found = found || at.Found()
		if err := writeScanLine(out, format, line); err != nil {
			return err
		}
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if !found {
		return errNoMatch
	}
	return nil
}

func writeScanLine(w io.Writer, format string, l scanLine) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(l)
	}
	switch {
	case l.Error != "":
		_, err := fmt.Fprintf(w, "frame %d (%s): error: %s\n", l.Frame, l.File, l.Error)
		return err
	case !l.Found:
		_, err := fmt.Fprintf(w, "frame %d (%s): no symbols found\n", l.Frame, l.File)
		return err
	}
	for _, s := range l.Symbols {
		if _, err := fmt.Fprintf(w, "frame %d (%s): %s\t%s\n", l.Frame, l.File, s.Format, s.Text); err != nil {
			return err
		}
	}
	return nil
}
