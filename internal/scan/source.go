// Package scan turns a stream of frames into a lazy sequence of decode
// attempts. It replaces a camera loop that polls until something decodes:
// sources produce frames, the scanner decodes them one at a time, and the
// caller decides when to stop.
package scan

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// FrameSource produces frames. NextFrame returns io.EOF once the stream is
// exhausted.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// ImageSource replays a fixed list of images.
type ImageSource struct {
	mu     sync.Mutex
	images []image.Image
	next   int
}

// NewImageSource returns a source over imgs.
func NewImageSource(imgs ...image.Image) *ImageSource {
	return &ImageSource{images: imgs}
}

// NextFrame implements FrameSource.
func (s *ImageSource) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.images) {
		return nil, io.EOF
	}
	img := s.images[s.next]
	s.next++
	return img, nil
}

// FileSource loads image files lazily, one per frame.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// NewFileSource returns a source over the given image paths.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// NextFrame implements FrameSource. A file that fails to load, or whose
// header exceeds the default pixel limit, ends the stream with that error.
func (s *FileSource) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	img, _, err := utils.LoadImageWithin(path, utils.DefaultImageConstraints())
	return img, err
}

// ChannelSource reads frames from a channel until it is closed. It suits
// producers that run on their own goroutine, such as a capture loop.
type ChannelSource struct {
	frames <-chan image.Image
}

// NewChannelSource returns a source reading from ch.
func NewChannelSource(ch <-chan image.Image) *ChannelSource {
	return &ChannelSource{frames: ch}
}

// NextFrame implements FrameSource. It blocks until a frame arrives, the
// channel closes or ctx is done.
func (s *ChannelSource) NextFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case img, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return img, nil
	}
}
