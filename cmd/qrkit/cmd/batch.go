package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [paths...]",
		Short: "Decode many images and PDFs in parallel",
		Long: `Decode barcodes in many files using a pool of parallel workers.
Directories can be walked recursively and filtered with glob patterns.
Results are reported in input order.

Examples:
  qrkit batch scans/ --recursive --workers 8
  qrkit batch *.png --format csv --output results.csv
  qrkit batch archive/ --recursive --include "*.pdf" --progress --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.batchConfig(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("recursive") {
				cfg.Recursive, _ = f.GetBool("recursive")
			}
			if f.Changed("include") {
				cfg.IncludePatterns, _ = f.GetStringSlice("include")
			}
			if f.Changed("exclude") {
				cfg.ExcludePatterns, _ = f.GetStringSlice("exclude")
			}
			if f.Changed("continue-on-error") {
				cfg.ContinueOnError, _ = f.GetBool("continue-on-error")
			}

			switch progress, _ := f.GetString("progress"); progress {
			case "console":
				cfg.Progress = batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Decoding")
			case "log":
				cfg.Progress = batch.NewLogProgressCallback(slog.Default(), slog.LevelInfo)
			}

			stats, _ := f.GetBool("stats")
			return runDecode(cmd, args, cfg, stats)
		},
	}
	addDecodeFlags(cmd)
	f := cmd.Flags()
	f.BoolP("recursive", "r", false, "walk directories recursively")
	f.StringSlice("include", nil, "glob patterns of file names to include")
	f.StringSlice("exclude", nil, "glob patterns of file names to exclude")
	f.Bool("continue-on-error", true, "keep going when a file fails")
	f.String("progress", "", "progress reporting: console or log")
	f.Bool("stats", false, "print processing statistics to stderr")
	return cmd
}
