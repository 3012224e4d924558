package barcode

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// maxLabelRunes bounds label length so long payloads don't run off the image.
const maxLabelRunes = 48

// AnnotateOptions controls how found symbols are drawn.
type AnnotateOptions struct {
	Color     color.Color
	Thickness int
	// Padding grows each symbol box so the outline clears the code itself.
	Padding int
	// Polygon draws the reported points instead of the axis-aligned box.
	Polygon bool
	Label   bool
	Face    font.Face
}

// DefaultAnnotateOptions draws green boxes, 2px wide, with labels.
func DefaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{
		Color:     color.RGBA{G: 255, A: 255},
		Thickness: 2,
		Padding:   4,
		Label:     true,
		Face:      basicfont.Face7x13,
	}
}

// Annotate returns a copy of img with a box and a "payload (TYPE)" label
// drawn for every symbol. img itself is left untouched.
func Annotate(img image.Image, symbols []Symbol, opts AnnotateOptions) *image.RGBA {
	out := utils.CloneRGBA(img)
	AnnotateInto(out, symbols, opts)
	return out
}

// AnnotateInto draws onto dst in place.
func AnnotateInto(dst *image.RGBA, symbols []Symbol, opts AnnotateOptions) {
	if opts.Color == nil {
		opts.Color = color.RGBA{G: 255, A: 255}
	}
	if opts.Face == nil {
		opts.Face = basicfont.Face7x13
	}
	for _, s := range symbols {
		rect := s.BBox.Inset(-opts.Padding)
		if opts.Polygon && len(s.Points) > 2 {
			pts := make([]utils.Point, 0, len(s.Points))
			for _, p := range s.Points {
				pts = append(pts, utils.Point{X: float64(p.X), Y: float64(p.Y)})
			}
			utils.DrawPolygon(dst, pts, opts.Color, opts.Thickness)
		} else {
			utils.DrawRect(dst, rect, opts.Color, opts.Thickness)
		}
		if opts.Label {
			drawLabel(dst, rect.Min, Label(s), opts)
		}
	}
}

// Label formats the caption drawn next to a symbol.
func Label(s Symbol) string {
	return fmt.Sprintf("%s (%s)", CleanLabel(s.Text), s.Format)
}

// CleanLabel normalizes payload text for display: NFC, control and zero-width
// characters removed, whitespace collapsed, truncated with an ellipsis.
func CleanLabel(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxLabelRunes {
		s = string(r[:maxLabelRunes-1]) + "…"
	}
	return s
}

// drawLabel writes text 10px above anchor, or just inside the image top if
// that would be clipped.
func drawLabel(dst *image.RGBA, anchor image.Point, text string, opts AnnotateOptions) {
	ascent := opts.Face.Metrics().Ascent.Ceil()
	y := max(anchor.Y-10, dst.Bounds().Min.Y+ascent)
	x := max(anchor.X, dst.Bounds().Min.X)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(opts.Color),
		Face: opts.Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
