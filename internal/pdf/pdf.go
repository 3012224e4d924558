// Package pdf pulls embedded raster images out of PDF documents so they can be
// scanned for barcodes.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/qrkit/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImage is one image extracted from a PDF page.
type PageImage struct {
	Page  int
	Index int
	Name  string
	Image image.Image
}

// ExtractImages extracts the embedded images of a PDF file using pdfcpu.
// Images come back ordered by page and then by extraction order within the page.
func ExtractImages(filename, pageRange string, creds *Credentials) ([]PageImage, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "qrkit-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, p := range pageNumbers {
		pageStrings = append(pageStrings, strconv.Itoa(p))
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, creds.configuration()); err != nil {
		if IsPasswordError(err) {
			return nil, fmt.Errorf("%w: %v", ErrPasswordRequired, err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	images, err := collectExtractedImages(tempDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return images, nil
}

// collectExtractedImages loads every image in dir whose name carries a page
// number and returns them sorted by page and file name.
func collectExtractedImages(dir, base string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []PageImage
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		page, err := parsePageFromFilename(base, e.Name())
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImageWithin(filepath.Join(dir, e.Name()), utils.DefaultImageConstraints())
		if err != nil {
			// pdfcpu also writes raw streams it cannot transcode; skip them,
			// along with images over the pixel limit
			continue
		}
		out = append(out, PageImage{Page: page, Name: e.Name(), Image: img})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Name < out[j].Name
	})
	for i := range out {
		if i > 0 && out[i].Page == out[i-1].Page {
			out[i].Index = out[i-1].Index + 1
		}
	}
	return out, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
// Both "page_<n>_..." and "<base>_<n>_..." layouts are accepted.
func parsePageFromFilename(base, filename string) (int, error) {
	var rest string
	switch {
	case strings.HasPrefix(filename, "page_"):
		rest = strings.TrimPrefix(filename, "page_")
	case base != "" && strings.HasPrefix(filename, base+"_"):
		rest = strings.TrimPrefix(filename, base+"_")
	default:
		return 0, errors.New("not a page file")
	}

	num, _, _ := strings.Cut(rest, "_")
	page, err := strconv.Atoi(num)
	if err != nil || page < 1 {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}
