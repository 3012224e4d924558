package utils_test

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/testutil"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

func TestDecodeImageBytesWithinRejectsOversizedHeader(t *testing.T) {
	data := testutil.OversizedPNG(t, 60000, 60000)

	_, _, err := utils.DecodeImageBytesWithin(data, utils.DefaultImageConstraints())
	require.ErrorIs(t, err, utils.ErrImageTooLarge)

	var procErr *utils.ImageProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "decode", procErr.Operation)
}

func TestDecodeImageBytesWithinAcceptsSmallImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.CreateTestImage(40, 30, color.White)))

	img, meta, err := utils.DecodeImageBytesWithin(buf.Bytes(), utils.DefaultImageConstraints())
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, meta.Height)

	cons := utils.DefaultImageConstraints()
	cons.MaxPixels = 100
	_, _, err = utils.DecodeImageBytesWithin(buf.Bytes(), cons)
	require.ErrorIs(t, err, utils.ErrImageTooLarge)
}

func TestLoadImageWithin(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(big, testutil.OversizedPNG(t, 20000, 20000), 0o600))

	_, _, err := utils.LoadImageWithin(big, utils.DefaultImageConstraints())
	require.ErrorIs(t, err, utils.ErrImageTooLarge)

	small := testutil.WriteImage(t, dir, "small.png", testutil.CreateTestImage(8, 8, color.White))
	_, meta, err := utils.LoadImageWithin(small, utils.DefaultImageConstraints())
	require.NoError(t, err)
	assert.Equal(t, small, meta.Path)
}
