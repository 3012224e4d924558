package pdf

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

func stubProcessor(images []PageImage, err error) *Processor {
	cfg := DefaultProcessorConfig()
	cfg.Decode.Formats = []barcode.Format{barcode.FormatQR}
	cfg.MaxWorkers = 2
	p := NewProcessor(cfg)
	p.extract = func(string, string, *Credentials) ([]PageImage, error) { return images, err }
	return p
}

func TestProcessor_ProcessFile(t *testing.T) {
	images := []PageImage{
		{Page: 1, Index: 0, Image: testutil.QRImage(t, "PAGE-1", qrgen.LevelM)},
		{Page: 1, Index: 1, Image: testutil.CreateTestImage(80, 80, color.White)},
		{Page: 3, Index: 0, Image: testutil.QRImage(t, "PAGE-3", qrgen.LevelQ)},
	}

	doc, err := stubProcessor(images, nil).ProcessFile(context.Background(), "doc.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "doc.pdf", doc.Filename)
	assert.Equal(t, 2, doc.TotalPages)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	require.Len(t, doc.Pages[0].Images, 2)
	assert.Empty(t, doc.Pages[0].Images[1].Symbols)
	assert.Equal(t, 3, doc.Pages[1].PageNumber)
	assert.Equal(t, 3, doc.ImageCount())

	syms := doc.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "PAGE-1", syms[0].Text)
	assert.Equal(t, "PAGE-3", syms[1].Text)
}

func TestProcessor_ExtractError(t *testing.T) {
	_, err := stubProcessor(nil, ErrPasswordRequired).ProcessFile(context.Background(), "doc.pdf", "")
	require.ErrorIs(t, err, ErrPasswordRequired)
}

func TestProcessor_BadImageRecorded(t *testing.T) {
	images := []PageImage{{Page: 1, Image: image.NewRGBA(image.Rect(0, 0, 0, 0))}}
	doc, err := stubProcessor(images, nil).ProcessFile(context.Background(), "doc.pdf", "")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Pages[0].Images[0].Error)
}

func TestProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	images := []PageImage{{Page: 1, Image: testutil.CreateTestImage(10, 10, color.White)}}
	_, err := stubProcessor(images, nil).ProcessFile(ctx, "doc.pdf", "")
	require.True(t, errors.Is(err, context.Canceled))
}
