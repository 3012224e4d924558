package cmd

import (
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

func writeQR(t *testing.T, dir, name, payload string) string {
	t.Helper()
	return testutil.WriteQRFile(t, dir, name, payload)
}

func TestEncodeThenDecode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "code.png")

	_, _, err := execute(t, "encode", "round", "trip", "-o", out, "--level", "Q", "--fg", "#1a237e")
	require.NoError(t, err)
	require.FileExists(t, out)

	stdout, _, err := execute(t, "decode", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# "+out)
	assert.Contains(t, stdout, "QR\tround trip")
}

func TestEncodeWithLogo(t *testing.T) {
	dir := t.TempDir()
	logo := testutil.WriteImage(t, dir, "logo.png", testutil.CreateTestImage(64, 64, color.RGBA{R: 220, A: 255}))
	out := filepath.Join(dir, "logo-code.png")

	_, _, err := execute(t, "encode", "https://example.com/logo", "-o", out, "--logo", logo)
	require.NoError(t, err)

	stdout, _, err := execute(t, "decode", out, "--formats", "qr")
	require.NoError(t, err)
	assert.Contains(t, stdout, "QR\thttps://example.com/logo")

	_, _, err = execute(t, "encode", "x", "-o", out, "--logo", logo, "--level", "L")
	require.Error(t, err)
}

func TestEncodeTerminal(t *testing.T) {
	stdout, _, err := execute(t, "encode", "terminal")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	assert.Greater(t, len(lines), 10)
}

func TestEncodeFromStdin(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "stdin.bmp")

	root := NewRootCommand()
	root.SetIn(strings.NewReader("from stdin"))
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetArgs([]string{"encode", "-", "-o", out})
	require.NoError(t, root.Execute())

	stdout, _, err := execute(t, "decode", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "QR\tfrom stdin")
}

func TestEncodeErrors(t *testing.T) {
	_, _, err := execute(t, "encode", strings.Repeat("x", 3000), "--level", "H", "--format", "png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload too long")

	_, _, err = execute(t, "encode", "")
	require.Error(t, err)

	_, _, err = execute(t, "encode", "x", "--bg", "#zzzzzz")
	require.Error(t, err)

	_, _, err = execute(t, "encode", "x", "--format", "gif")
	require.Error(t, err)
}

func TestBarcodeThenDecode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "bar.png")

	_, _, err := execute(t, "barcode", "QRKIT-128", "-o", out)
	require.NoError(t, err)

	stdout, _, err := execute(t, "decode", out, "--formats", "code128")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Code128\tQRKIT-128")

	_, _, err = execute(t, "barcode", "123", "--type", "ean13", "-o", out)
	require.Error(t, err)
}

func TestDecodeJSONAndFirst(t *testing.T) {
	dir := t.TempDir()
	path := writeQR(t, dir, "a.png", "json output")

	stdout, _, err := execute(t, "decode", path, "--format", "json", "--first")
	require.NoError(t, err)

	var report struct {
		Files []struct {
			File    string `json:"file"`
			Symbols []struct {
				Format string `json:"format"`
				Text   string `json:"text"`
			} `json:"symbols"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Files, 1)
	require.Len(t, report.Files[0].Symbols, 1)
	assert.Equal(t, "json output", report.Files[0].Symbols[0].Text)
}

func TestDecodeOutputFileAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeQR(t, dir, "overlay.png", "draw me")
	results := filepath.Join(dir, "results.csv")
	overlays := filepath.Join(dir, "overlays")

	stdout, _, err := execute(t, "decode", path, "--format", "csv", "-o", results, "--overlay-dir", overlays)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	assert.Contains(t, string(data), "draw me")
	assert.FileExists(t, filepath.Join(overlays, "overlay_overlay.png"))
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := execute(t, "decode")
	require.Error(t, err)

	_, _, err = execute(t, "decode", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image or PDF files found")

	_, _, err = execute(t, "decode", "x.png", "--formats", "morse")
	require.Error(t, err)
}

func TestBatchDirectory(t *testing.T) {
	dir := t.TempDir()
	want := testutil.SampleSet(t, dir)

	stdout, stderr, err := execute(t, "batch", dir, "--workers", "3", "--format", "csv", "--stats")
	require.NoError(t, err)
	for name, payload := range want {
		assert.Contains(t, stdout, name)
		if payload != "" {
			assert.Contains(t, stdout, payload)
		}
	}
	assert.Contains(t, stderr, "Processing Statistics:")
}

func TestBatchExcludePattern(t *testing.T) {
	dir := t.TempDir()
	testutil.SampleSet(t, dir)

	stdout, _, err := execute(t, "batch", dir, "--exclude", "*128*,blank*")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "code128.png")
	assert.NotContains(t, stdout, "blank.png")
	assert.Contains(t, stdout, "hello.png")
}

func TestScanStopsAtFirstMatch(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImage(t, dir, "f0.png", testutil.CreateTextImage("nothing", 160, 60))
	testutil.WriteImage(t, dir, "f1.png", testutil.CreateTestImage(100, 100, color.White))
	writeQR(t, dir, "f2.png", "frame two")
	writeQR(t, dir, "f3.png", "frame three")

	stdout, _, err := execute(t, "scan", dir, "--formats", "qr")
	require.NoError(t, err)
	assert.Contains(t, stdout, "frame 2")
	assert.Contains(t, stdout, "QR\tframe two")
	assert.NotContains(t, stdout, "frame three")
}

func TestScanAllJSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImage(t, dir, "f0.png", testutil.CreateTestImage(100, 100, color.White))
	writeQR(t, dir, "f1.png", "seen")

	stdout, _, err := execute(t, "scan", dir, "--all", "--format", "json", "--formats", "qr")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	var first, second scanLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.False(t, first.Found)
	assert.True(t, second.Found)
	assert.Equal(t, "seen", second.Symbols[0].Text)
	assert.Equal(t, filepath.Join(dir, "f1.png"), second.File)
}

func TestScanNoMatch(t *testing.T) {
	dir := t.TempDir()
	blank := testutil.WriteImage(t, dir, "blank.png", testutil.CreateTestImage(100, 100, color.White))

	_, _, err := execute(t, "scan", blank, "--formats", "qr")
	require.ErrorIs(t, err, errNoMatch)

	_, _, err = execute(t, "scan", t.TempDir())
	require.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "decoder:")
	assert.Contains(t, stdout, "encoder:")

	stdout, _, err = execute(t, "--log-level", "warn", "config", "show", "--format", "json")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, "warn", cfg["log_level"])
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrkit.yaml")

	stdout, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)
	require.FileExists(t, path)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)

	_, _, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	// The generated file loads cleanly.
	_, _, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
}

func TestServeRejectsInvalidPort(t *testing.T) {
	_, _, err := execute(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}
