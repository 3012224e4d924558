package qrgen

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"

	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// LinearKind is a 1D symbology supported by EncodeLinear.
type LinearKind string

const (
	KindCode128 LinearKind = "code128"
	KindCode39  LinearKind = "code39"
	KindEAN13   LinearKind = "ean13"
	KindEAN8    LinearKind = "ean8"
)

// LinearKinds lists the supported kinds.
func LinearKinds() []LinearKind {
	return []LinearKind{KindCode128, KindCode39, KindEAN13, KindEAN8}
}

// ParseLinearKind accepts kind names with or without a hyphen.
func ParseLinearKind(s string) (LinearKind, error) {
	k := LinearKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", ""))
	for _, known := range LinearKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown barcode type %q", ErrInvalidRequest, s)
}

// LinearRequest describes a 1D barcode to render.
type LinearRequest struct {
	Payload string
	Kind    LinearKind
	// Width is the bar area width in pixels. 0 uses 3 pixels per bar module.
	Width  int
	Height int
	// QuietZone is the white margin in pixels on every side.
	QuietZone int
}

// EncodeLinear renders a 1D barcode with a white quiet zone around it.
func EncodeLinear(req LinearRequest) (image.Image, error) {
	if req.Payload == "" {
		return nil, ErrEmptyPayload
	}
	if req.Height == 0 {
		req.Height = 100
	}
	if req.QuietZone == 0 {
		req.QuietZone = 30
	}
	if req.Width < 0 || req.Height < 0 || req.QuietZone < 0 {
		return nil, fmt.Errorf("%w: negative barcode dimensions", ErrInvalidRequest)
	}
	if req.Width+2*req.QuietZone > MaxImageSide || req.Height+2*req.QuietZone > MaxImageSide {
		return nil, fmt.Errorf("%w: barcode image larger than %d px", ErrInvalidRequest, MaxImageSide)
	}

	var (
		bc  barcode.Barcode
		err error
	)
	switch req.Kind {
	case KindCode128, "":
		bc, err = code128.Encode(req.Payload)
	case KindCode39:
		bc, err = code39.Encode(strings.ToUpper(req.Payload), false, false)
	case KindEAN13:
		if n := len(req.Payload); n != 12 && n != 13 {
			return nil, fmt.Errorf("%w: EAN-13 needs 12 or 13 digits, got %d", ErrInvalidRequest, n)
		}
		bc, err = ean.Encode(req.Payload)
	case KindEAN8:
		if n := len(req.Payload); n != 7 && n != 8 {
			return nil, fmt.Errorf("%w: EAN-8 needs 7 or 8 digits, got %d", ErrInvalidRequest, n)
		}
		bc, err = ean.Encode(req.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown barcode type %q", ErrInvalidRequest, req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, req.Kind, err)
	}

	bars := bc.Bounds().Dx()
	width := req.Width
	if width == 0 {
		width = bars * 3
	}
	if width < bars {
		return nil, fmt.Errorf("%w: width %d is narrower than the %d bar modules", ErrInvalidRequest, width, bars)
	}
	if width+2*req.QuietZone > MaxImageSide {
		return nil, fmt.Errorf("%w: barcode image larger than %d px", ErrInvalidRequest, MaxImageSide)
	}
	scaled, err := barcode.Scale(bc, width, req.Height)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}
	return utils.PadImage(scaled, req.QuietZone, color.White), nil
}
