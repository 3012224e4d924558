package qrgen

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// DefaultLogoFraction is the logo side relative to the image side.
const DefaultLogoFraction = 0.2

// MaxLogoFraction is the largest logo the encoder accepts.
const MaxLogoFraction = 0.3

// MaxImageSide bounds the side of any rendered image in pixels.
const MaxImageSide = 8192

// Request describes one QR code to render.
type Request struct {
	Payload string
	Level   Level
	// Version forces a QR version (1-40). 0 picks the smallest that fits.
	Version int
	// MaxVersion caps auto-selection. 0 means 40.
	MaxVersion int
	// ModuleSize is the side of one module in pixels. 0 means 8.
	ModuleSize int
	// Border is the quiet zone width in modules.
	Border     int
	Foreground color.Color
	Background color.Color
	Logo       image.Image
	// LogoFraction is the logo side relative to the image side, in (0, 0.3].
	LogoFraction float64
}

// DefaultRequest returns a request for payload at level M with a 4-module
// quiet zone, black on white.
func DefaultRequest(payload string) Request {
	return Request{
		Payload:      payload,
		Level:        LevelM,
		ModuleSize:   8,
		Border:       4,
		Foreground:   color.Black,
		Background:   color.White,
		LogoFraction: DefaultLogoFraction,
	}
}

// Result is an encoded symbol and its raster.
type Result struct {
	Matrix *Matrix
	Image  *image.RGBA
	// LogoRect is the area covered by the logo; empty without a logo.
	LogoRect image.Rectangle
}

// Validate checks the request without encoding it and fills defaults.
func (r *Request) Validate() error {
	if r.Payload == "" {
		return ErrEmptyPayload
	}
	if !r.Level.valid() {
		return fmt.Errorf("%w: unknown error correction level %d", ErrInvalidRequest, int(r.Level))
	}
	if r.MaxVersion == 0 {
		r.MaxVersion = MaxVersion
	}
	if r.MaxVersion < 1 || r.MaxVersion > MaxVersion {
		return fmt.Errorf("%w: max version %d outside 1-%d", ErrInvalidRequest, r.MaxVersion, MaxVersion)
	}
	if r.Version < 0 || r.Version > r.MaxVersion {
		return fmt.Errorf("%w: version %d outside 0-%d", ErrInvalidRequest, r.Version, r.MaxVersion)
	}
	if r.ModuleSize == 0 {
		r.ModuleSize = 8
	}
	if r.ModuleSize < 1 || r.ModuleSize > 100 {
		return fmt.Errorf("%w: module size %d outside 1-100", ErrInvalidRequest, r.ModuleSize)
	}
	if r.Border < 0 || r.Border > 40 {
		return fmt.Errorf("%w: border %d outside 0-40", ErrInvalidRequest, r.Border)
	}
	if r.Foreground == nil {
		r.Foreground = color.Black
	}
	if r.Background == nil {
		r.Background = color.White
	}
	if r.Logo != nil {
		if r.Level != LevelH {
			return ErrLogoRequiresLevelH
		}
		if r.LogoFraction == 0 {
			r.LogoFraction = DefaultLogoFraction
		}
		if r.LogoFraction <= 0 || r.LogoFraction > MaxLogoFraction {
			return fmt.Errorf("%w: logo fraction %.2f outside (0, %.1f]", ErrInvalidRequest, r.LogoFraction, MaxLogoFraction)
		}
	}
	return nil
}

// Encode builds the module matrix for req and renders it. It either returns a
// complete result or an error, never a partial raster.
func Encode(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m, err := buildMatrix(req.Payload, req.Level, req.Version, req.MaxVersion)
	if err != nil {
		return nil, err
	}
	if side := (m.Size() + 2*req.Border) * req.ModuleSize; side > MaxImageSide {
		return nil, fmt.Errorf("%w: image side %d px exceeds %d px, lower the module size or border",
			ErrInvalidRequest, side, MaxImageSide)
	}

	res := &Result{Matrix: m, Image: Render(m, req.ModuleSize, req.Border, req.Foreground, req.Background)}
	if req.Logo != nil {
		res.LogoRect = OverlayLogo(res.Image, req.Logo, req.LogoFraction)
	}
	return res, nil
}

// EncodeMatrix builds only the module matrix.
func EncodeMatrix(payload string, level Level, version int) (*Matrix, error) {
	req := Request{Payload: payload, Level: level, Version: version}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return buildMatrix(req.Payload, req.Level, req.Version, req.MaxVersion)
}

// Render paints m with square modules of moduleSize pixels and a quiet zone of
// border modules.
func Render(m *Matrix, moduleSize, border int, fg, bg color.Color) *image.RGBA {
	side := (m.Size() + 2*border) * moduleSize
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	dark := image.NewUniform(fg)
	for y, row := range m.Modules {
		for x, on := range row {
			if !on {
				continue
			}
			px := (x + border) * moduleSize
			py := (y + border) * moduleSize
			draw.Draw(img, image.Rect(px, py, px+moduleSize, py+moduleSize), dark, image.Point{}, draw.Src)
		}
	}
	return img
}
