package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

func TestQRBoundsCoverWholeSymbol(t *testing.T) {
	// Version 1 at 4px per module with a 4 module border spans 16..100.
	img := testutil.QRImage(t, "HELLO", qrgen.LevelM)
	symbols, err := Decode(context.Background(), img, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, symbols, 1)

	box := symbols[0].BBox
	assert.InDelta(t, 16, box.Min.X, 2)
	assert.InDelta(t, 16, box.Min.Y, 2)
	assert.InDelta(t, 100, box.Max.X, 2)
	assert.InDelta(t, 100, box.Max.Y, 2)
}

func TestLinearBoundsCoverBarHeight(t *testing.T) {
	img := testutil.LinearImage(t, "QRKIT-128", qrgen.KindCode128)
	opts := DefaultOptions()
	opts.Formats = []Format{FormatCode128}
	symbols, err := Decode(context.Background(), img, opts)
	require.NoError(t, err)
	require.NotEmpty(t, symbols)

	// 100px of bars inside a 30px quiet zone.
	box := symbols[0].BBox
	assert.GreaterOrEqual(t, box.Dy(), 90)
	assert.True(t, box.In(img.Bounds()))
}

func TestSymbolBoundsFallsBackToPoints(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	box := symbolBounds(img, FormatDataMatrix, []utils.Point{{X: 2, Y: 3}, {X: 10, Y: 12}})
	assert.Equal(t, utils.NewBox(2, 3, 10, 12), box)
}

func TestSymbolScale(t *testing.T) {
	s := Symbol{Points: []Point{{X: 10, Y: 20}}, BBox: image.Rect(5, 5, 15, 25)}
	got := s.Scale(2)
	assert.Equal(t, []Point{{X: 20, Y: 40}}, got.Points)
	assert.Equal(t, image.Rect(10, 10, 30, 50), got.BBox)
	assert.Equal(t, []Point{{X: 10, Y: 20}}, s.Points)
	assert.Equal(t, s, s.Scale(1))
}
