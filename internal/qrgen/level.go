// Package qrgen renders payloads as QR codes and linear barcodes.
//
// The module matrix depends only on the payload, the error-correction level and
// the version. Colours, module size, border and logo are applied afterwards to
// the raster and never change which modules are dark.
package qrgen

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Level is a QR error-correction level.
type Level int

const (
	LevelL Level = iota // ~7% recovery
	LevelM              // ~15% recovery
	LevelQ              // ~25% recovery
	LevelH              // ~30% recovery
)

// String returns the single-letter level name.
func (l Level) String() string {
	switch l {
	case LevelL:
		return "L"
	case LevelM:
		return "M"
	case LevelQ:
		return "Q"
	case LevelH:
		return "H"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLevel accepts the letter or the long name of a level, in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return LevelL, nil
	case "m", "medium":
		return LevelM, nil
	case "q", "quartile":
		return LevelQ, nil
	case "h", "high":
		return LevelH, nil
	}
	return 0, fmt.Errorf("%w: unknown error correction level %q", ErrInvalidRequest, s)
}

func (l Level) valid() bool { return l >= LevelL && l <= LevelH }

func (l Level) recovery() qrcode.RecoveryLevel {
	switch l {
	case LevelL:
		return qrcode.Low
	case LevelQ:
		return qrcode.High
	case LevelH:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}
