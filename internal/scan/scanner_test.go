package scan

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

func blank() image.Image { return testutil.CreateTestImage(80, 80, color.White) }

func TestAttemptsYieldsOnePerFrame(t *testing.T) {
	src := NewImageSource(blank(), testutil.QRImage(t, "FRAME 1", qrgen.LevelM), blank())
	var got []Attempt
	for a := range NewScanner(barcode.DefaultOptions()).Attempts(context.Background(), src) {
		got = append(got, a)
	}
	require.Len(t, got, 3)
	assert.False(t, got[0].Found())
	assert.True(t, got[1].Found())
	assert.Equal(t, "FRAME 1", got[1].Symbols[0].Text)
	assert.Equal(t, 2, got[2].Index)
	for _, a := range got {
		require.NoError(t, a.Err)
	}
}

type countingSource struct {
	FrameSource
	reads int
}

func (c *countingSource) NextFrame(ctx context.Context) (image.Image, error) {
	c.reads++
	return c.FrameSource.NextFrame(ctx)
}

func TestAttemptsIsLazyAndStopsOnBreak(t *testing.T) {
	src := &countingSource{FrameSource: NewImageSource(testutil.QRImage(t, "STOP", qrgen.LevelM), blank(), blank())}
	seq := NewScanner(barcode.DefaultOptions()).Attempts(context.Background(), src)
	assert.Equal(t, 0, src.reads)

	for a := range seq {
		if a.Found() {
			break
		}
	}
	assert.Equal(t, 1, src.reads)
}

func TestAttemptsMaxFrames(t *testing.T) {
	frames := make(chan image.Image, 10)
	for range 10 {
		frames <- blank()
	}
	s := &Scanner{Options: barcode.DefaultOptions(), MaxFrames: 4}
	n := 0
	for range s.Attempts(context.Background(), NewChannelSource(frames)) {
		n++
	}
	assert.Equal(t, 4, n)
}

func TestAttemptsInterval(t *testing.T) {
	s := &Scanner{Options: barcode.DefaultOptions(), Interval: 20 * time.Millisecond}
	start := time.Now()
	n := 0
	for range s.Attempts(context.Background(), NewImageSource(blank(), blank(), blank())) {
		n++
	}
	assert.Equal(t, 3, n)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAttemptsSourceErrorEndsStream(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.png"), "unused.png")
	var got []Attempt
	for a := range NewScanner(barcode.DefaultOptions()).Attempts(context.Background(), src) {
		got = append(got, a)
	}
	require.Len(t, got, 1)
	require.Error(t, got[0].Err)
}

func TestAttemptsDecodeErrorDoesNotEndStream(t *testing.T) {
	src := NewImageSource(image.NewRGBA(image.Rect(0, 0, 0, 0)), blank())
	var got []Attempt
	for a := range NewScanner(barcode.DefaultOptions()).Attempts(context.Background(), src) {
		got = append(got, a)
	}
	require.Len(t, got, 2)
	var die *barcode.DecodeInputError
	require.ErrorAs(t, got[0].Err, &die)
	require.NoError(t, got[1].Err)
}

func TestFirstMatch(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		testutil.WriteImage(t, dir, "a.png", blank()),
		testutil.WriteQRFile(t, dir, "b.png", "SECOND"),
		testutil.WriteQRFile(t, dir, "c.png", "THIRD"),
	}
	sym, frame, ok, err := NewScanner(barcode.DefaultOptions()).FirstMatch(context.Background(), NewFileSource(paths...))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, frame)
	assert.Equal(t, "SECOND", sym.Text)
}

func TestFirstMatchNoCode(t *testing.T) {
	_, frame, ok, err := NewScanner(barcode.DefaultOptions()).FirstMatch(context.Background(), NewImageSource(blank()))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, -1, frame)
}

func TestChannelSourceRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewChannelSource(make(chan image.Image)).NextFrame(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	_, _, ok, err := NewScanner(barcode.DefaultOptions()).FirstMatch(ctx, NewChannelSource(make(chan image.Image)))
	assert.False(t, ok)
	require.Error(t, err)
}
