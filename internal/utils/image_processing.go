package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrImageTooLarge is wrapped by errors for images over the pixel limit.
var ErrImageTooLarge = errors.New("image too large")

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the images accepted by the decoder.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
	MaxPixels int
}

// DefaultImageConstraints returns the limits used for decode input.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  4096,
		MaxHeight: 4096,
		MinWidth:  1,
		MinHeight: 1,
		MaxPixels: 50_000_000,
	}
}

// Downscale shrinks img to fit MaxWidth x MaxHeight, preserving aspect ratio.
// Images already inside the limits are returned unchanged.
func Downscale(img image.Image, constraints ImageConstraints) (image.Image, float64, error) {
	if img == nil {
		return nil, 1, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if (constraints.MaxWidth <= 0 || w <= constraints.MaxWidth) &&
		(constraints.MaxHeight <= 0 || h <= constraints.MaxHeight) {
		return img, 1, nil
	}
	maxW, maxH := constraints.MaxWidth, constraints.MaxHeight
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	out := imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	return out, float64(out.Bounds().Dx()) / float64(w), nil
}

// Invert returns the photographic negative of img, for light-on-dark symbols.
func Invert(img image.Image) image.Image {
	return imaging.Invert(img)
}

// PadImage surrounds img with a solid border of the given width in pixels.
func PadImage(img image.Image, border int, bg color.Color) *image.NRGBA {
	if border < 0 {
		border = 0
	}
	b := img.Bounds()
	out := imaging.New(b.Dx()+2*border, b.Dy()+2*border, bg)
	return imaging.Paste(out, img, image.Pt(border, border))
}
