// Package barcode locates and decodes 1D and 2D optical codes in raster images.
//
// Decoding is pure: inputs are never mutated and no state survives a call, so
// independent images may be decoded concurrently. Drawing boxes and labels for
// found symbols is a separate step, see Annotate.
package barcode

import (
	"fmt"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "QR",
	FormatDataMatrix: "DataMatrix",
	FormatCode128:    "Code128",
	FormatCode39:     "Code39",
	FormatEAN8:       "EAN-8",
	FormatEAN13:      "EAN-13",
	FormatUPCA:       "UPC-A",
	FormatUPCE:       "UPC-E",
	FormatITF:        "ITF",
	FormatCodabar:    "Codabar",
}

// String returns the display name used in labels and output ("QR", "EAN-13", ...).
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Is2D reports whether the format is a matrix code.
func (f Format) Is2D() bool { return f == FormatQR || f == FormatDataMatrix }

// AllFormats lists every symbology the decoder can read, in reader order.
func AllFormats() []Format {
	return []Format{
		FormatQR, FormatDataMatrix,
		FormatEAN13, FormatEAN8, FormatUPCA, FormatUPCE,
		FormatCode128, FormatCode39, FormatITF, FormatCodabar,
	}
}

// ParseFormat maps a user-supplied name to a Format. Matching ignores case,
// hyphens and underscores, so "ean13", "EAN-13" and "ean_13" are equivalent.
func ParseFormat(s string) (Format, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "qr", "qrcode":
		return FormatQR, nil
	case "datamatrix", "dm":
		return FormatDataMatrix, nil
	case "code128":
		return FormatCode128, nil
	case "code39":
		return FormatCode39, nil
	case "ean8":
		return FormatEAN8, nil
	case "ean13":
		return FormatEAN13, nil
	case "upca":
		return FormatUPCA, nil
	case "upce":
		return FormatUPCE, nil
	case "itf":
		return FormatITF, nil
	case "codabar":
		return FormatCodabar, nil
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format %q", s)
}

// ParseFormats parses a list of names, rejecting the first unknown one.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Point is an integer point in image coordinates.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Symbol is one decoded optical code.
type Symbol struct {
	Format Format
	// Payload holds the decoded bytes. For text payloads it equals []byte(Text).
	Payload []byte
	Text    string
	// Points is the bounding polygon in scan order as reported by the reader:
	// finder pattern centres for matrix codes, the scan line ends for 1D codes.
	Points []Point
	// BBox is the axis-aligned box around Points.
	BBox image.Rectangle
}

// Options controls decoding.
type Options struct {
	// Formats constrains the symbologies to search. Empty means all.
	Formats []Format

	// TryHarder enables a more exhaustive search (slower but more robust).
	TryHarder bool

	// Multi searches sub-regions for additional symbols after the first.
	Multi bool

	// TryInverted retries on the negative image when nothing was found.
	TryInverted bool

	// CharacterSet is the fallback charset for byte-mode payloads.
	CharacterSet string

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// Empty or out-of-bounds rectangles are ignored.
	ROI image.Rectangle
}

// DefaultOptions returns the options used by the CLI and server when nothing
// is configured.
func DefaultOptions() Options {
	return Options{
		TryHarder:    true,
		Multi:        true,
		CharacterSet: "UTF-8",
	}
}
