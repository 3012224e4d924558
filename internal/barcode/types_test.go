package barcode

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"qr":          FormatQR,
		"QR_CODE":     FormatQR,
		"ean13":       FormatEAN13,
		"EAN-13":      FormatEAN13,
		"upc-a":       FormatUPCA,
		"Code128":     FormatCode128,
		"data_matrix": FormatDataMatrix,
		"codabar":     FormatCodabar,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("maxicode")
	require.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"qr", "", " ean8 "})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatQR, FormatEAN8}, got)

	_, err = ParseFormats([]string{"qr", "nope"})
	require.Error(t, err)
}

func TestFormatStringRoundTrip(t *testing.T) {
	for _, f := range AllFormats() {
		back, err := ParseFormat(f.String())
		require.NoError(t, err, f.String())
		assert.Equal(t, f, back)
	}
	assert.Equal(t, "Unknown", FormatUnknown.String())
	assert.True(t, FormatQR.Is2D())
	assert.False(t, FormatEAN13.Is2D())
}

func TestFormatJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Format{"f": FormatEAN13})
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":"EAN-13"}`, string(b))

	var back map[string]Format
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, FormatEAN13, back["f"])
}

func TestSymbolJSON(t *testing.T) {
	s := Symbol{
		Format:  FormatQR,
		Text:    "HELLO",
		Payload: []byte("HELLO"),
		Points:  []Point{{X: 1, Y: 2}},
		BBox:    image.Rect(10, 20, 40, 60),
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"QR","text":"HELLO","box":{"x":10,"y":20,"w":30,"h":40},"points":[{"x":1,"y":2}]}`, string(b))

	s.Payload = []byte{0xff, 0x00}
	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"payload_hex":"ff00"`)
}
