package qrgen

import (
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor accepts SVG colour names ("navy") and hex notation: RGB, RRGGBB
// or RRGGBBAA, with or without a leading '#'.
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.RGBA{}, &ColorFormatError{Value: s, Reason: "empty"}
	}
	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}

	hex := strings.TrimPrefix(v, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.RGBA{}, &ColorFormatError{Value: s, Reason: "expected a colour name or 3, 6 or 8 hex digits"}
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, &ColorFormatError{Value: s, Reason: "not a hex number"}
	}
	// Hex alpha is straight, color.RGBA is premultiplied.
	c := color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}
	return color.RGBAModel.Convert(c).(color.RGBA), nil
}

// FormatColor renders c as #RRGGBB, or #RRGGBBAA when not opaque.
func FormatColor(c color.Color) string {
	rgba := color.NRGBAModel.Convert(c).(color.NRGBA)
	if rgba.A == 0xff {
		return "#" + hex2(rgba.R) + hex2(rgba.G) + hex2(rgba.B)
	}
	return "#" + hex2(rgba.R) + hex2(rgba.G) + hex2(rgba.B) + hex2(rgba.A)
}

func hex2(b uint8) string {
	s := strconv.FormatUint(uint64(b), 16)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
