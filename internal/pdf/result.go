package pdf

import "github.com/MeKo-Tech/qrkit/internal/barcode"

// DocumentResult holds the barcodes found in a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename"    yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages"       yaml:"pages"`
	Processing ProcessingInfo `json:"processing"  yaml:"processing"`
}

// PageResult holds the results for the images of a single page.
type PageResult struct {
	PageNumber int           `json:"page_number" yaml:"page_number"`
	Images     []ImageResult `json:"images"      yaml:"images"`
}

// ImageResult holds the symbols decoded from one extracted image.
type ImageResult struct {
	ImageIndex int              `json:"image_index"     yaml:"image_index"`
	Width      int              `json:"width"           yaml:"width"`
	Height     int              `json:"height"          yaml:"height"`
	Symbols    []barcode.Symbol `json:"symbols"         yaml:"symbols"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	DecodeTimeMs     int64 `json:"decode_time_ms"     yaml:"decode_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms"      yaml:"total_time_ms"`
}

// Symbols returns every decoded symbol in page and image order.
func (d *DocumentResult) Symbols() []barcode.Symbol {
	var out []barcode.Symbol
	for _, p := range d.Pages {
		for _, img := range p.Images {
			out = append(out, img.Symbols...)
		}
	}
	return out
}

// ImageCount returns the number of images that were scanned.
func (d *DocumentResult) ImageCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Images)
	}
	return n
}
