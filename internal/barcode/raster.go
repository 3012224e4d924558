package barcode

import (
	"fmt"
	"image"
)

// Raster is a caller-owned 8-bit pixel buffer, row-major without padding.
// Channels is 1 (grayscale) or 3 (RGB).
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Validate checks the dimensions against the buffer.
func (r Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return &DecodeInputError{Reason: fmt.Sprintf("invalid dimensions %dx%d", r.Width, r.Height)}
	}
	if r.Channels != 1 && r.Channels != 3 {
		return &DecodeInputError{Reason: fmt.Sprintf("unsupported channel count %d", r.Channels)}
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return &DecodeInputError{Reason: fmt.Sprintf("pixel buffer has %d bytes, want %d", len(r.Pix), want)}
	}
	return nil
}

// Image wraps the raster as an image.Image. Grayscale rasters share Pix; RGB
// rasters are expanded into a new RGBA buffer, leaving Pix untouched.
func (r Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.Channels == 1 {
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}, nil
	}
	out := image.NewRGBA(rect)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
		out.Pix[j] = r.Pix[i]
		out.Pix[j+1] = r.Pix[i+1]
		out.Pix[j+2] = r.Pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out, nil
}

// RasterFromImage converts any image to a single-channel Raster.
func RasterFromImage(img image.Image) Raster {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return Raster{Width: b.Dx(), Height: b.Dy(), Channels: 1, Pix: gray.Pix}
}
