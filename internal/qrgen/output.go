package qrgen

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFormats lists the lossless formats WriteImage supports.
var ImageFormats = []string{"png", "bmp", "tiff"}

// NormalizeImageFormat maps aliases ("tif", "PNG") to a supported format name.
func NormalizeImageFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimPrefix(format, ".")); f {
	case "", "png":
		return "png", nil
	case "bmp":
		return "bmp", nil
	case "tif", "tiff":
		return "tiff", nil
	default:
		return "", fmt.Errorf("%w: unsupported image format %q", ErrInvalidRequest, format)
	}
}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) string {
	switch format {
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "image/png"
	}
}

// WriteImage encodes img losslessly in the given format.
func WriteImage(w io.Writer, img image.Image, format string) error {
	f, err := NormalizeImageFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	}
}
