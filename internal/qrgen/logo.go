package qrgen

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// OverlayLogo scales logo so its longer side is fraction times the image side,
// centres it on dst and alpha-composites it. Only pixels inside the returned
// rectangle change. Whether the code still scans is left to the error
// correction level.
func OverlayLogo(dst *image.RGBA, logo image.Image, fraction float64) image.Rectangle {
	b := dst.Bounds()
	box := int(float64(min(b.Dx(), b.Dy())) * fraction)
	if box < 1 || logo == nil || logo.Bounds().Empty() {
		return image.Rectangle{}
	}

	lb := logo.Bounds()
	scale := float64(box) / float64(max(lb.Dx(), lb.Dy()))
	w := max(1, int(math.Round(float64(lb.Dx())*scale)))
	h := max(1, int(math.Round(float64(lb.Dy())*scale)))
	scaled := imaging.Resize(logo, w, h, imaging.Lanczos)

	at := image.Pt(b.Min.X+(b.Dx()-w)/2, b.Min.Y+(b.Dy()-h)/2)
	rect := image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}
	draw.Draw(dst, rect, scaled, scaled.Bounds().Min, draw.Over)
	return rect
}
