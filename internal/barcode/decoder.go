package barcode

import (
	"context"
	"errors"
	"image"
	"maps"
	"math"
	"slices"

	"github.com/makiuchi-d/gozxing"

	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// Decode scans img for optical codes and returns them in scan order. An image
// without any readable symbol yields an empty slice and a nil error; symbols
// that fail their checksum or error correction are left out.
func Decode(ctx context.Context, img image.Image, opts Options) ([]Symbol, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, origin := img, img.Bounds().Min
	if roi := opts.ROI.Intersect(img.Bounds()); !roi.Empty() {
		src, origin = utils.CropImageRect(img, roi), roi.Min
	}

	symbols, err := scan(src, origin, opts)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 && opts.TryInverted {
		return scan(utils.Invert(src), origin, opts)
	}
	return symbols, nil
}

// DecodeFirst returns the first symbol found, matching a caller that only
// wants one result per image.
func DecodeFirst(ctx context.Context, img image.Image, opts Options) (Symbol, bool, error) {
	opts.Multi = false
	symbols, err := Decode(ctx, img, opts)
	if err != nil || len(symbols) == 0 {
		return Symbol{}, false, err
	}
	return symbols[0], true, nil
}

// DecodeWithin checks img against cons, shrinks it to the size limits and
// decodes it. Symbol coordinates refer to the original image.
func DecodeWithin(ctx context.Context, img image.Image, opts Options, cons utils.ImageConstraints) ([]Symbol, error) {
	if img == nil {
		return nil, &DecodeInputError{Reason: "nil image"}
	}
	if err := utils.ValidateImageConstraints(img, cons); err != nil {
		return nil, &DecodeInputError{Reason: "image outside size limits", Err: err}
	}
	small, scale, err := utils.Downscale(img, cons)
	if err != nil {
		return nil, err
	}
	if scale != 1 && opts.ROI != (image.Rectangle{}) {
		r := opts.ROI
		opts.ROI = image.Rect(
			int(float64(r.Min.X)*scale), int(float64(r.Min.Y)*scale),
			int(float64(r.Max.X)*scale), int(float64(r.Max.Y)*scale),
		)
	}

	symbols, err := Decode(ctx, small, opts)
	if err != nil {
		return nil, err
	}
	if scale != 1 {
		for i := range symbols {
			symbols[i] = symbols[i].Scale(1 / scale)
		}
	}
	return symbols, nil
}

// DecodeRaster decodes a caller-owned pixel buffer.
func DecodeRaster(ctx context.Context, r Raster, opts Options) ([]Symbol, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	return Decode(ctx, img, opts)
}

// DecodeBytes decodes an encoded image file (PNG, JPEG, ...) held in memory
// under the default image constraints.
func DecodeBytes(ctx context.Context, data []byte, opts Options) ([]Symbol, error) {
	cons := utils.DefaultImageConstraints()
	img, _, err := utils.DecodeImageBytesWithin(data, cons)
	if errors.Is(err, utils.ErrImageTooLarge) {
		return nil, &DecodeInputError{Reason: "image outside size limits", Err: err}
	}
	if err != nil {
		return nil, &DecodeInputError{Reason: "undecodable image data", Err: err}
	}
	return DecodeWithin(ctx, img, opts, cons)
}

func checkImage(img image.Image) error {
	if img == nil {
		return &DecodeInputError{Reason: "nil image"}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return &DecodeInputError{Reason: "image has zero dimensions"}
	}
	return nil
}

// scan runs the readers over img. Result coordinates are relative to img's
// first pixel and are shifted by origin into the caller's coordinate space.
func scan(img image.Image, origin image.Point, opts Options) ([]Symbol, error) {
	source := gozxing.NewLuminanceSourceFromImage(img)
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, &DecodeInputError{Reason: "binarize", Err: err}
	}

	hints := opts.hints()
	reader := newMultiFormatReader(opts.Formats)

	var found []hit
	if opts.Multi {
		found = sweep(reader, bmp, hints, 0, 0, 0, nil)
	} else if h, ok := decodeOnce(reader, bmp, hints, 0, 0); ok {
		found = []hit{h}
	}

	// The detector can misjudge the module grid of a clean, generated symbol.
	// Reading it as a pure barcode samples the grid from the symbol's corners.
	if len(found) == 0 {
		pure := make(map[gozxing.DecodeHintType]interface{}, len(hints)+1)
		maps.Copy(pure, hints)
		pure[gozxing.DecodeHintType_PURE_BARCODE] = true
		if h, ok := decodeOnce(reader, bmp, pure, 0, 0); ok {
			found = []hit{h}
		}
	}

	symbols := make([]Symbol, 0, len(found))
	for _, h := range found {
		symbols = append(symbols, h.symbol(img, origin))
	}
	return symbols, nil
}

const (
	// Regions narrower than this are not searched for further symbols.
	minSweepRegion = 100
	maxSweepDepth  = 4
)

// hit is one reader result with its points in full-bitmap coordinates.
type hit struct {
	text   string
	format gozxing.BarcodeFormat
	points []utils.Point
}

// decodeOnce runs reader on bmp, a crop whose top-left corner sits at
// (dx, dy) in the full bitmap. Reader errors only ever mean "nothing
// readable here".
func decodeOnce(
	reader gozxing.Reader, bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}, dx, dy int,
) (hit, bool) {
	res, err := reader.Decode(bmp, hints)
	if err != nil || res == nil {
		return hit{}, false
	}
	h := hit{text: res.GetText(), format: res.GetBarcodeFormat()}
	for _, p := range res.GetResultPoints() {
		if p == nil {
			continue
		}
		h.points = append(h.points, utils.Point{X: p.GetX() + float64(dx), Y: p.GetY() + float64(dy)})
	}
	return h, true
}

// sweep decodes one symbol, then searches the regions left of, above, right
// of and below it for more. Symbols are reported once per text.
func sweep(
	reader gozxing.Reader, bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{},
	dx, dy, depth int, found []hit,
) []hit {
	if depth > maxSweepDepth {
		return found
	}
	h, ok := decodeOnce(reader, bmp, hints, dx, dy)
	if !ok {
		return found
	}
	if !slices.ContainsFunc(found, func(o hit) bool { return o.text == h.text }) {
		found = append(found, h)
	}
	if len(h.points) == 0 || !bmp.IsCropSupported() {
		return found
	}

	box := utils.BoundingBox(utils.OffsetPoints(h.points, -float64(dx), -float64(dy)))
	w, ht := bmp.GetWidth(), bmp.GetHeight()
	minX, minY := int(box.MinX), int(box.MinY)
	maxX, maxY := int(math.Ceil(box.MaxX)), int(math.Ceil(box.MaxY))

	type region struct{ x, y, w, h int }
	var regions []region
	if minX > minSweepRegion {
		regions = append(regions, region{0, 0, minX, ht})
	}
	if minY > minSweepRegion {
		regions = append(regions, region{0, 0, w, minY})
	}
	if maxX < w-minSweepRegion {
		regions = append(regions, region{maxX, 0, w - maxX, ht})
	}
	if maxY < ht-minSweepRegion {
		regions = append(regions, region{0, maxY, w, ht - maxY})
	}
	for _, r := range regions {
		sub, err := bmp.Crop(r.x, r.y, r.w, r.h)
		if err != nil {
			continue
		}
		found = sweep(reader, sub, hints, dx+r.x, dy+r.y, depth+1, found)
	}
	return found
}

func (h hit) symbol(img image.Image, origin image.Point) Symbol {
	format := mapFormatFromZXing(h.format)

	dx, dy := float64(origin.X), float64(origin.Y)
	pts := make([]Point, 0, len(h.points))
	for _, p := range utils.OffsetPoints(h.points, dx, dy) {
		pts = append(pts, Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))})
	}

	var bbox image.Rectangle
	if len(h.points) > 0 {
		box := symbolBounds(img, format, h.points)
		bbox = image.Rect(
			int(math.Floor(box.MinX+dx)), int(math.Floor(box.MinY+dy)),
			int(math.Ceil(box.MaxX+dx))+1, int(math.Ceil(box.MaxY+dy))+1,
		)
	}

	return Symbol{
		Format:  format,
		Payload: []byte(h.text),
		Text:    h.text,
		Points:  pts,
		BBox:    bbox,
	}
}
