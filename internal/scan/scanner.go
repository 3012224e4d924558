package scan

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// Attempt is the outcome of decoding one frame.
type Attempt struct {
	// Index counts frames from 0.
	Index   int
	Symbols []barcode.Symbol
	// Err is a decode or source error. A source error is the last attempt.
	Err     error
	Elapsed time.Duration
}

// Found reports whether the frame yielded at least one symbol.
func (a Attempt) Found() bool { return len(a.Symbols) > 0 }

// Scanner decodes frames from a source on demand.
type Scanner struct {
	Options barcode.Options
	// Interval is the minimum time between the start of two frames.
	Interval time.Duration
	// MaxFrames stops the stream after that many frames. 0 means no limit.
	MaxFrames int
	// Constraints rejects oversized frames and shrinks large ones before
	// decoding. The zero value selects utils.DefaultImageConstraints.
	Constraints utils.ImageConstraints
}

// NewScanner returns a scanner with the given decode options and no pacing.
func NewScanner(opts barcode.Options) *Scanner {
	return &Scanner{Options: opts}
}

// Attempts yields one Attempt per frame. Nothing is read from src until the
// caller starts ranging, and breaking out of the loop stops reading. The
// sequence ends at io.EOF, at MaxFrames, on a source error or when ctx is
// done.
func (s *Scanner) Attempts(ctx context.Context, src FrameSource) iter.Seq[Attempt] {
	cons := s.Constraints
	if cons == (utils.ImageConstraints{}) {
		cons = utils.DefaultImageConstraints()
	}
	return func(yield func(Attempt) bool) {
		var last time.Time
		for i := 0; s.MaxFrames == 0 || i < s.MaxFrames; i++ {
			if !last.IsZero() && s.Interval > 0 {
				if err := sleep(ctx, s.Interval-time.Since(last)); err != nil {
					return
				}
			}
			last = time.Now()

			frame, err := src.NextFrame(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					yield(Attempt{Index: i, Err: err, Elapsed: time.Since(last)})
				}
				return
			}

			symbols, err := barcode.DecodeWithin(ctx, frame, s.Options, cons)
			if !yield(Attempt{Index: i, Symbols: symbols, Err: err, Elapsed: time.Since(last)}) {
				return
			}
		}
	}
}

// FirstMatch reads frames until one decodes and returns the first symbol of
// that frame. ok is false when the stream ended without a match.
func (s *Scanner) FirstMatch(ctx context.Context, src FrameSource) (sym barcode.Symbol, frame int, ok bool, err error) {
	opts := s.Options
	opts.Multi = false
	first := &Scanner{Options: opts, Interval: s.Interval, MaxFrames: s.MaxFrames, Constraints: s.Constraints}

	for a := range first.Attempts(ctx, src) {
		var inputErr *barcode.DecodeInputError
		switch {
		case errors.As(a.Err, &inputErr):
			// Broken frames are skipped.
			continue
		case a.Err != nil:
			return barcode.Symbol{}, a.Index, false, a.Err
		case a.Found():
			return a.Symbols[0], a.Index, true, nil
		}
	}
	return barcode.Symbol{}, -1, false, ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
