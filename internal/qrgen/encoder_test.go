package qrgen

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHelloIsVersion1(t *testing.T) {
	res, err := Encode(DefaultRequest("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matrix.Version)
	assert.Equal(t, 21, res.Matrix.Size())
	assert.Equal(t, LevelM, res.Matrix.Level)
	// 21 modules + 2*4 border at 8px per module.
	assert.Equal(t, image.Rect(0, 0, 232, 232), res.Image.Bounds())
	assert.True(t, res.LogoRect.Empty())
}

func TestEncodeFinderPatternAtOrigin(t *testing.T) {
	m, err := EncodeMatrix("HELLO", LevelM, 0)
	require.NoError(t, err)
	for i := range 7 {
		assert.True(t, m.At(i, 0), "top edge %d", i)
		assert.True(t, m.At(0, i), "left edge %d", i)
	}
	assert.False(t, m.At(1, 1))
	assert.True(t, m.At(3, 3))
	assert.False(t, m.At(7, 7))
	assert.False(t, m.At(-1, 0))
	assert.False(t, m.At(0, 21))
}

func TestEncodeDeterministic(t *testing.T) {
	for _, level := range []Level{LevelL, LevelM, LevelQ, LevelH} {
		a, err := EncodeMatrix("determinism check 123", level, 0)
		require.NoError(t, err)
		b, err := EncodeMatrix("determinism check 123", level, 0)
		require.NoError(t, err)
		assert.True(t, a.Equal(b), level.String())
	}
}

func TestEncodeMatrixIndependentOfStyling(t *testing.T) {
	plain, err := Encode(DefaultRequest("STYLE"))
	require.NoError(t, err)

	req := DefaultRequest("STYLE")
	req.Foreground = color.RGBA{R: 0x33, G: 0x00, B: 0x99, A: 0xff}
	req.Background = color.RGBA{R: 0xff, G: 0xee, B: 0xdd, A: 0xff}
	req.ModuleSize = 3
	req.Border = 2
	styled, err := Encode(req)
	require.NoError(t, err)

	assert.True(t, plain.Matrix.Equal(styled.Matrix))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xee, B: 0xdd, A: 0xff}, styled.Image.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 0x33, B: 0x99, A: 0xff}, styled.Image.RGBAAt(2*3, 2*3))
}

func TestEncodeForcedVersion(t *testing.T) {
	m, err := EncodeMatrix("HELLO", LevelM, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Version)
	assert.Equal(t, 37, m.Size())

	_, err = EncodeMatrix(strings.Repeat("A", 200), LevelH, 2)
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Version)
}

func TestEncodeCapacityExceeded(t *testing.T) {
	req := DefaultRequest(strings.Repeat("x", 3000))
	req.Level = LevelH
	res, err := Encode(req)
	assert.Nil(t, res)
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3000, capErr.Length)
	assert.Equal(t, MaxVersion, capErr.MaxVersion)
	assert.Contains(t, err.Error(), "exceeds capacity")
}

func TestEncodeMaxVersionCap(t *testing.T) {
	req := DefaultRequest(strings.Repeat("x", 100))
	req.MaxVersion = 3
	_, err := Encode(req)
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.MaxVersion)
}

func TestEncodeValidation(t *testing.T) {
	logo := image.NewRGBA(image.Rect(0, 0, 10, 10))
	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"empty payload", func(r *Request) { r.Payload = "" }, ErrEmptyPayload},
		{"bad level", func(r *Request) { r.Level = Level(9) }, ErrInvalidRequest},
		{"version too big", func(r *Request) { r.Version = 41 }, ErrInvalidRequest},
		{"negative border", func(r *Request) { r.Border = -1 }, ErrInvalidRequest},
		{"negative module", func(r *Request) { r.ModuleSize = -2 }, ErrInvalidRequest},
		{"logo below H", func(r *Request) { r.Logo = logo }, ErrLogoRequiresLevelH},
		{"logo too large", func(r *Request) { r.Logo, r.Level, r.LogoFraction = logo, LevelH, 0.5 }, ErrInvalidRequest},
		{"image too large", func(r *Request) { r.Version, r.ModuleSize, r.Border = 40, 100, 40 }, ErrInvalidRequest},
		{"border pushes side over limit", func(r *Request) { r.ModuleSize, r.Border = 100, 40 }, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := DefaultRequest("VALID")
			tt.mutate(&req)
			_, err := Encode(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestEncodeWithLogoKeepsOutsidePixels(t *testing.T) {
	plain := DefaultRequest("https://example.com/with-logo")
	plain.Level = LevelH
	base, err := Encode(plain)
	require.NoError(t, err)

	logo := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for i := range logo.Pix {
		logo.Pix[i] = 0xc0
	}
	withLogo := plain
	withLogo.Logo = logo
	res, err := Encode(withLogo)
	require.NoError(t, err)

	require.Equal(t, base.Image.Bounds(), res.Image.Bounds())
	require.False(t, res.LogoRect.Empty())
	assert.True(t, res.Matrix.Equal(base.Matrix))

	side := base.Image.Bounds().Dx()
	assert.Equal(t, int(float64(side)*DefaultLogoFraction), res.LogoRect.Dx())
	// Wider than tall logos keep their aspect ratio.
	assert.InDelta(t, res.LogoRect.Dx()/2, res.LogoRect.Dy(), 1)

	changed := 0
	b := res.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if image.Pt(x, y).In(res.LogoRect) {
				if res.Image.RGBAAt(x, y) != base.Image.RGBAAt(x, y) {
					changed++
				}
				continue
			}
			require.Equal(t, base.Image.RGBAAt(x, y), res.Image.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
	assert.Positive(t, changed)
}

func TestTerminal(t *testing.T) {
	m, err := EncodeMatrix("HELLO", LevelM, 0)
	require.NoError(t, err)
	out, err := m.Terminal(false)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// 21 modules plus a 4 module border, two rows per line.
	assert.Len(t, lines, (21+8+1)/2)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"l": LevelL, "LOW": LevelL, "m": LevelM, "Quartile": LevelQ, "h": LevelH, " high ": LevelH}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("x")
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Q", LevelQ.String())
}
