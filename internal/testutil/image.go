package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// CreateTestImage returns a solid image of the given colour.
func CreateTestImage(width, height int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}

// CreateTextImage renders text on a white background. It contains no code
// and is used as a negative sample.
func CreateTextImage(text string, width, height int) *image.RGBA {
	img := CreateTestImage(width, height, color.White)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, height/2),
	}
	d.DrawString(text)
	return img
}

// QRImage encodes payload as a small QR image with a standard quiet zone.
func QRImage(t *testing.T, payload string, level qrgen.Level) *image.RGBA {
	t.Helper()
	req := qrgen.DefaultRequest(payload)
	req.Level = level
	req.ModuleSize = 4
	res, err := qrgen.Encode(req)
	require.NoError(t, err)
	return res.Image
}

// LinearImage renders a 1D barcode.
func LinearImage(t *testing.T, payload string, kind qrgen.LinearKind) image.Image {
	t.Helper()
	img, err := qrgen.EncodeLinear(qrgen.LinearRequest{Payload: payload, Kind: kind})
	require.NoError(t, err)
	return img
}

// Place pastes img onto a white canvas of the given size at (x, y).
func Place(canvasW, canvasH int, img image.Image, x, y int) *image.NRGBA {
	canvas := imaging.New(canvasW, canvasH, color.White)
	return imaging.Paste(canvas, img, image.Pt(x, y))
}

// WriteImage saves img under dir and returns the path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, name)
	require.NoError(t, utils.SaveImage(path, img))
	return path
}

// WriteQRFile encodes payload at level M and saves it as a PNG under dir.
func WriteQRFile(t *testing.T, dir, name, payload string) string {
	t.Helper()
	return WriteImage(t, dir, name, QRImage(t, payload, qrgen.LevelM))
}

// SampleSet writes a mix of code and no-code images into dir and returns the
// expected first payload per file name ("" for images without a code).
func SampleSet(t *testing.T, dir string) map[string]string {
	t.Helper()
	want := map[string]string{
		"hello.png":   "HELLO",
		"url.png":     "https://example.com/qrkit",
		"ean13.png":   "5901234123457",
		"code128.png": "QRKIT-128",
		"blank.png":   "",
	}
	WriteQRFile(t, dir, "hello.png", "HELLO")
	WriteQRFile(t, dir, "url.png", "https://example.com/qrkit")
	WriteImage(t, dir, "ean13.png", LinearImage(t, "590123412345", qrgen.KindEAN13))
	WriteImage(t, dir, "code128.png", LinearImage(t, "QRKIT-128", qrgen.KindCode128))
	WriteImage(t, dir, "blank.png", CreateTestImage(120, 120, color.White))
	return want
}

// CompareImages reports whether the mean per-pixel distance is within
// tolerance, as a fraction of the largest possible distance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b := img1.Bounds()
	if b.Size() != img2.Bounds().Size() {
		return false
	}
	o := img2.Bounds().Min.Sub(b.Min)
	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x+o.X, y+o.Y).RGBA()
			dr, dg := float64(r1)-float64(r2), float64(g1)-float64(g2)
			db, da := float64(b1)-float64(b2), float64(a1)-float64(a2)
			total += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return true
	}
	return total/n/math.Sqrt(4*65535*65535) <= tolerance
}

// OversizedPNG returns a tiny PNG whose header claims width x height pixels.
// Only the header is valid, so decoding the pixel data fails.
func OversizedPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, CreateTestImage(1, 1, color.White)))
	data := buf.Bytes()

	// The IHDR chunk follows the 8-byte signature: length, type, then width
	// and height, with its CRC over type and data.
	binary.BigEndian.PutUint32(data[16:], uint32(width))
	binary.BigEndian.PutUint32(data[20:], uint32(height))
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}
