// Package cmd implements the qrkit command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/version"
)

// app carries the state shared by one command tree. Each tree owns its viper
// instance so repeated in-process runs do not leak flags into each other.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds the complete qrkit command tree.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWith(viper.New())}

	root := &cobra.Command{
		Use:   "qrkit",
		Short: "Decode barcodes from images and generate QR codes",
		Long: `qrkit finds and decodes QR, Data Matrix and 1D barcodes in images and PDFs,
and renders QR codes with optional colours and a centred logo.

Examples:
  qrkit decode photo.jpg
  qrkit decode scans/ --recursive --format json
  qrkit encode "https://example.com" -o code.png --logo logo.png
  qrkit barcode 4006381333931 --type ean13 -o ean.png
  qrkit serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), a.cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("qrkit version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/qrkit, /etc/qrkit)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	v := a.loader.GetViper()
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newDecodeCmd(a),
		newBatchCmd(a),
		newEncodeCmd(a),
		newBarcodeCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the command line with os.Args. SIGINT and SIGTERM cancel the
// command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// config returns the loaded configuration.
func (a *app) config() *config.Config {
	if a.cfg == nil {
		d := config.DefaultConfig()
		return &d
	}
	return a.cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs a JSON slog handler on w. Command output goes to
// stdout, so logs go to stderr.
func setupLogging(w io.Writer, cfg *config.Config) {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
