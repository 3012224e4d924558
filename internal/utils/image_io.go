package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists file extensions accepted as decode input.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string `json:"path,omitempty"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	data, err := readImageFile(path)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	img, meta, err := DecodeImageBytes(data)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

// LoadImageWithin is LoadImage for files that must fit constraints. The
// dimensions are read from the header before any pixel data is decoded.
func LoadImageWithin(path string, constraints ImageConstraints) (image.Image, ImageMetadata, error) {
	data, err := readImageFile(path)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	img, meta, err := DecodeImageBytesWithin(data, constraints)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

func readImageFile(path string) ([]byte, error) {
	if path == "" {
		return nil, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &ImageProcessingError{
			Operation: "load",
			Err:       fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided image path
	if err != nil {
		return nil, &ImageProcessingError{Operation: "load", Err: err}
	}
	return data, nil
}

// DecodeImageBytes decodes an encoded image held in memory.
func DecodeImageBytes(data []byte) (image.Image, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: errors.New("empty image data")}
	}
	return DecodeImageReader(bytes.NewReader(data), int64(len(data)))
}

// DecodeImageBytesWithin decodes data only if the dimensions in its header
// fit constraints, so a small file cannot expand into a huge raster.
func DecodeImageBytesWithin(data []byte, constraints ImageConstraints) (image.Image, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: errors.New("empty image data")}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}
	if err := checkDimensions(cfg.Width, cfg.Height, constraints); err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}
	return DecodeImageBytes(data)
}

// DecodeImageReader decodes an image from r. size is only recorded in the metadata.
func DecodeImageReader(r io.Reader, size int64) (image.Image, ImageMetadata, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	return img, ImageMetadata{Format: format, SizeBytes: size, Width: b.Dx(), Height: b.Dy()}, nil
}

// SaveImage encodes img to path, choosing the encoder from the extension.
func SaveImage(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}

// ValidateImageConstraints checks dimensions against the provided constraints.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if err := checkDimensions(b.Dx(), b.Dy(), constraints); err != nil {
		return &ImageProcessingError{Operation: "validate", Err: err}
	}
	return nil
}

func checkDimensions(w, h int, constraints ImageConstraints) error {
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return fmt.Errorf("image too small: %dx%d < %dx%d", w, h, constraints.MinWidth, constraints.MinHeight)
	}
	if constraints.MaxPixels > 0 && int64(w)*int64(h) > int64(constraints.MaxPixels) {
		return fmt.Errorf("%w: %d pixels > %d", ErrImageTooLarge, int64(w)*int64(h), constraints.MaxPixels)
	}
	return nil
}
