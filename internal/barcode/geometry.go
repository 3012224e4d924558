package barcode

import (
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// The readers only report key points: finder pattern centres for QR codes and
// the ends of one scan line for 1D codes. symbolBounds grows those points to
// the printed extent of the symbol by probing the pixels around them.
func symbolBounds(img image.Image, f Format, pts []utils.Point) utils.Box {
	box := utils.BoundingBox(pts)
	switch {
	case f == FormatQR && len(pts) >= 3:
		if r := finderRadius(img, pts[:3]); r > 0 {
			return box.Expand(r)
		}
	case !f.Is2D() && len(pts) >= 2:
		return barExtent(img, box)
	}
	return box
}

func isDark(img image.Image, x, y int) bool {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128
}

// finderRadius returns the median distance from the finder centres to the
// outer edge of their pattern. Walking out from a centre crosses the
// dark/light boundary three times before leaving the pattern.
func finderRadius(img image.Image, centres []utils.Point) float64 {
	b := img.Bounds()
	dirs := []image.Point{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}
	var radii []int
	for _, c := range centres {
		start := image.Pt(int(math.Round(c.X)), int(math.Round(c.Y))).Add(b.Min)
		if !start.In(b) {
			continue
		}
		for _, d := range dirs {
			prev := isDark(img, start.X, start.Y)
			crossings := 0
			for p := start.Add(d); p.In(b); p = p.Add(d) {
				if dark := isDark(img, p.X, p.Y); dark != prev {
					prev = dark
					if crossings++; crossings == 3 {
						dist := p.Sub(start)
						radii = append(radii, max(abs(dist.X), abs(dist.Y)))
						break
					}
				}
			}
		}
	}
	if len(radii) == 0 {
		return 0
	}
	slices.Sort(radii)
	return float64(radii[len(radii)/2])
}

// barExtent grows a scan line across the bars: rows (or columns, for a
// rotated code) are added while they show at least half as many edges as the
// line the reader decoded.
func barExtent(img image.Image, line utils.Box) utils.Box {
	b := img.Bounds()
	vertical := line.Height() > line.Width()

	edges := func(pos int) int {
		n := 0
		var prev bool
		if vertical {
			for y := int(line.MinY); y <= int(line.MaxY); y++ {
				dark := isDark(img, pos+b.Min.X, y+b.Min.Y)
				if y > int(line.MinY) && dark != prev {
					n++
				}
				prev = dark
			}
			return n
		}
		for x := int(line.MinX); x <= int(line.MaxX); x++ {
			dark := isDark(img, x+b.Min.X, pos+b.Min.Y)
			if x > int(line.MinX) && dark != prev {
				n++
			}
			prev = dark
		}
		return n
	}

	at, limit := int(math.Round(line.MinY)), b.Dy()
	if vertical {
		at, limit = int(math.Round(line.MinX)), b.Dx()
	}
	if at < 0 || at >= limit {
		return line
	}
	ref := edges(at)
	if ref < 4 {
		return line
	}
	lo, hi := at, at
	for lo > 0 && edges(lo-1) >= ref/2 {
		lo--
	}
	for hi < limit-1 && edges(hi+1) >= ref/2 {
		hi++
	}
	if vertical {
		return utils.Box{MinX: float64(lo), MinY: line.MinY, MaxX: float64(hi), MaxY: line.MaxY}
	}
	return utils.Box{MinX: line.MinX, MinY: float64(lo), MaxX: line.MaxX, MaxY: float64(hi)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Scale maps the symbol's coordinates by factor f, for results found on a
// resized copy of the original image.
func (s Symbol) Scale(f float64) Symbol {
	if f == 1 || f <= 0 {
		return s
	}
	pts := make([]Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = Point{X: int(math.Round(float64(p.X) * f)), Y: int(math.Round(float64(p.Y) * f))}
	}
	s.Points = pts
	s.BBox = image.Rect(
		int(math.Floor(float64(s.BBox.Min.X)*f)),
		int(math.Floor(float64(s.BBox.Min.Y)*f)),
		int(math.Ceil(float64(s.BBox.Max.X)*f)),
		int(math.Ceil(float64(s.BBox.Max.Y)*f)),
	)
	return s
}
