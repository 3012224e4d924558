package qrgen

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	cases := map[string]color.RGBA{
		"#000000":   {A: 0xff},
		"ffffff":    {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		"#f00":      {R: 0xff, A: 0xff},
		"#1E90FF":   {R: 0x1e, G: 0x90, B: 0xff, A: 0xff},
		"navy":      {B: 0x80, A: 0xff},
		"  Red ":    {R: 0xff, A: 0xff},
		"#ff000000": {},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseColorErrors(t *testing.T) {
	for _, in := range []string{"", "#12", "#gggggg", "notacolour", "#1234567"} {
		_, err := ParseColor(in)
		var cfe *ColorFormatError
		require.ErrorAs(t, err, &cfe, in)
		assert.Equal(t, in, cfe.Value)
	}
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "#1e90ff", FormatColor(color.RGBA{R: 0x1e, G: 0x90, B: 0xff, A: 0xff}))
	assert.Equal(t, "#ff000080", FormatColor(color.NRGBA{R: 0xff, A: 0x80}))
}
