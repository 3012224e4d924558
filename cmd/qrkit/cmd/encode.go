package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

const terminalFormat = "terminal"

func newEncodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [payload]",
		Short: "Generate a QR code",
		Long: `Encode a payload as a QR code image. The payload is taken from the arguments,
from --input, or from stdin when the argument is "-".

Without --output the code is printed to the terminal. The image format follows
the output file extension (png, bmp, tiff) unless --format is given. Adding a
logo raises the error correction level to H unless --level is set.

Examples:
  qrkit encode "hello world"
  qrkit encode https://example.com -o code.png --level Q --module-size 10
  qrkit encode https://example.com -o code.png --logo logo.png --fg "#1a237e"
  echo -n "WIFI:T:WPA;S:home;P:secret;;" | qrkit encode - -o wifi.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd, args)
		},
	}
	f := cmd.Flags()
	f.StringP("output", "o", "", "output image file (default: print to terminal)")
	f.StringP("input", "i", "", "read the payload from this file")
	f.String("format", "", "output format: png, bmp, tiff or terminal")
	f.StringP("level", "l", "", "error correction level: L, M, Q or H")
	f.Int("version", 0, "force QR version 1-40 (0 = smallest that fits)")
	f.Int("max-version", 40, "largest version automatic selection may use")
	f.Int("module-size", 8, "pixels per module")
	f.Int("border", 4, "quiet zone width in modules")
	f.String("fg", "", "foreground colour (hex or name)")
	f.String("bg", "", "background colour (hex or name)")
	f.String("logo", "", "image to place in the centre of the code")
	f.Float64("logo-fraction", 0.2, "logo size relative to the code size (max 0.3)")
	f.Bool("inverse", false, "swap dark and light when printing to the terminal")
	return cmd
}

func readPayload(cmd *cobra.Command, args []string) (string, error) {
	input, _ := cmd.Flags().GetString("input")
	switch {
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read payload: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return string(data), nil
	default:
		return strings.Join(args, " "), nil
	}
}

// encodeRequest applies changed flags to the configured encoder defaults.
func (a *app) encodeRequest(cmd *cobra.Command, payload string) (qrgen.Request, error) {
	req, err := a.config().EncodeRequest(payload)
	if err != nil {
		return req, err
	}
	f := cmd.Flags()

	if f.Changed("level") {
		v, _ := f.GetString("level")
		if req.Level, err = qrgen.ParseLevel(v); err != nil {
			return req, err
		}
	}
	if f.Changed("version") {
		req.Version, _ = f.GetInt("version")
	}
	if f.Changed("max-version") {
		req.MaxVersion, _ = f.GetInt("max-version")
	}
	if f.Changed("module-size") {
		req.ModuleSize, _ = f.GetInt("module-size")
	}
	if f.Changed("border") {
		req.Border, _ = f.GetInt("border")
	}
	if f.Changed("fg") {
		v, _ := f.GetString("fg")
		if req.Foreground, err = qrgen.ParseColor(v); err != nil {
			return req, err
		}
	}
	if f.Changed("bg") {
		v, _ := f.GetString("bg")
		if req.Background, err = qrgen.ParseColor(v); err != nil {
			return req, err
		}
	}
	if f.Changed("logo-fraction") {
		req.LogoFraction, _ = f.GetFloat64("logo-fraction")
	}
	if path, _ := f.GetString("logo"); path != "" {
		logo, _, err := utils.LoadImage(path)
		if err != nil {
			return req, fmt.Errorf("failed to load logo: %w", err)
		}
		req.Logo = logo
		if !f.Changed("level") {
			req.Level = qrgen.LevelH
		}
	}
	return req, nil
}

// outputFormat resolves the image format from --format, the output file
// extension and the configured default, in that order.
func (a *app) outputFormat(cmd *cobra.Command, output string) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch {
	case strings.EqualFold(format, terminalFormat):
		return terminalFormat, nil
	case format != "":
		return qrgen.NormalizeImageFormat(format)
	case output == "":
		return terminalFormat, nil
	case filepath.Ext(output) != "":
		return qrgen.NormalizeImageFormat(filepath.Ext(output))
	default:
		return qrgen.NormalizeImageFormat(a.config().Encoder.ImageFormat)
	}
}

func (a *app) runEncode(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(cmd, args)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	format, err := a.outputFormat(cmd, output)
	if err != nil {
		return err
	}
	req, err := a.encodeRequest(cmd, payload)
	if err != nil {
		return err
	}

	res, err := qrgen.Encode(req)
	if err != nil {
		var capErr *qrgen.CapacityExceededError
		if errors.As(err, &capErr) {
			return fmt.Errorf("payload too long: %w", err)
		}
		return err
	}
	slog.Debug("Encoded QR code", "version", res.Matrix.Version, "level", res.Matrix.Level.String(), "modules", res.Matrix.Size())

	if format == terminalFormat {
		if req.Logo != nil {
			slog.Warn("Logo is not shown in terminal output")
		}
		inverse, _ := cmd.Flags().GetBool("inverse")
		text, err := res.Matrix.Terminal(inverse)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	}

	if output == "" {
		return qrgen.WriteImage(cmd.OutOrStdout(), res.Image, format)
	}
	if err := writeImageFile(output, func(w io.Writer) error {
		return qrgen.WriteImage(w, res.Image, format)
	}); err != nil {
		return err
	}
	slog.Info("QR code written", "file", output, "version", res.Matrix.Version, "level", res.Matrix.Level.String())
	return nil
}

func writeImageFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
