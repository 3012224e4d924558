package barcode

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

func TestAnnotateDrawsOnCopy(t *testing.T) {
	qr := testutil.QRImage(t, "ANNOTATE", qrgen.LevelM)
	canvas := testutil.Place(300, 300, qr, 100, 100)
	opts := DefaultOptions()
	opts.Formats = []Format{FormatQR}
	symbols, err := Decode(context.Background(), canvas, opts)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.True(t, symbols[0].BBox.Overlaps(image.Rect(100, 100, 216, 216)))

	before := append([]byte(nil), canvas.Pix...)
	out := Annotate(canvas, symbols, DefaultAnnotateOptions())

	assert.Equal(t, before, canvas.Pix, "input must stay untouched")
	assert.Equal(t, canvas.Bounds(), out.Bounds())

	rect := symbols[0].BBox.Inset(-4)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(rect.Min.X, rect.Min.Y))

	// Decoding the annotated copy still yields the same payload.
	again, err := Decode(context.Background(), out, opts)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, symbols[0].Payload, again[0].Payload)
}

func TestAnnotateIntoWithoutLabel(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 50, 50))
	sym := Symbol{Format: FormatQR, Text: "x", BBox: image.Rect(10, 10, 30, 30)}
	opts := DefaultAnnotateOptions()
	opts.Label = false
	opts.Padding = 0
	opts.Color = color.RGBA{R: 255, A: 255}
	AnnotateInto(dst, []Symbol{sym}, opts)

	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(20, 20))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(20, 2))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "HELLO (QR)", Label(Symbol{Format: FormatQR, Text: "HELLO"}))
	assert.Equal(t, "5901234123457 (EAN-13)", Label(Symbol{Format: FormatEAN13, Text: "5901234123457"}))
}

func TestCleanLabel(t *testing.T) {
	cases := map[string]string{
		"plain":               "plain",
		"line1\nline2\tend":   "line1 line2 end",
		"zero\u200bwidth":     "zerowidth",
		"bell\x07":            "bell",
		"Cafe\u0301":          "Caf\u00e9",
		"  padded   spaces  ": "padded spaces",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanLabel(in), in)
	}

	long := CleanLabel("abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz")
	assert.Len(t, []rune(long), maxLabelRunes)
	assert.Equal(t, '\u2026', []rune(long)[maxLabelRunes-1])
}
