package pdf

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// ProcessorConfig configures PDF barcode scanning.
type ProcessorConfig struct {
	Decode      barcode.Options
	Credentials *Credentials
	// MaxWorkers bounds parallel image decoding; 0 means runtime.NumCPU.
	MaxWorkers int
	// Constraints bounds and downscales each image; zero means the defaults.
	Constraints utils.ImageConstraints
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{Decode: barcode.DefaultOptions()}
}

type extractFunc func(filename, pageRange string, creds *Credentials) ([]PageImage, error)

// Processor scans the images embedded in PDF documents for barcodes.
type Processor struct {
	config  *ProcessorConfig
	extract extractFunc
}

// NewProcessor creates a processor. A nil config selects the defaults.
func NewProcessor(config *ProcessorConfig) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	return &Processor{config: config, extract: ExtractImages}
}

// ProcessFile extracts the images of the selected pages and decodes each one.
// Per-image decode failures are recorded on the image; extraction failures
// fail the whole document.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string) (*DocumentResult, error) {
	start := time.Now()

	images, err := p.extract(filename, pageRange, p.config.Credentials)
	if err != nil {
		return nil, err
	}
	extracted := time.Now()

	results, err := p.decodeAll(ctx, images)
	if err != nil {
		return nil, err
	}

	doc := &DocumentResult{Filename: filename}
	for i, img := range images {
		if len(doc.Pages) == 0 || doc.Pages[len(doc.Pages)-1].PageNumber != img.Page {
			doc.Pages = append(doc.Pages, PageResult{PageNumber: img.Page})
		}
		page := &doc.Pages[len(doc.Pages)-1]
		page.Images = append(page.Images, results[i])
	}
	doc.TotalPages = len(doc.Pages)

	done := time.Now()
	doc.Processing = ProcessingInfo{
		ExtractionTimeMs: extracted.Sub(start).Milliseconds(),
		DecodeTimeMs:     done.Sub(extracted).Milliseconds(),
		TotalTimeMs:      done.Sub(start).Milliseconds(),
	}
	return doc, nil
}

// decodeAll decodes images in parallel and returns results in input order.
func (p *Processor) decodeAll(ctx context.Context, images []PageImage) ([]ImageResult, error) {
	results := make([]ImageResult, len(images))
	workers := p.config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			results[i] = p.decodeImage(ctx, img)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) decodeImage(ctx context.Context, img PageImage) ImageResult {
	b := img.Image.Bounds()
	res := ImageResult{ImageIndex: img.Index, Width: b.Dx(), Height: b.Dy(), Symbols: []barcode.Symbol{}}
	cons := p.config.Constraints
	if cons == (utils.ImageConstraints{}) {
		cons = utils.DefaultImageConstraints()
	}
	symbols, err := barcode.DecodeWithin(ctx, img.Image, p.config.Decode, cons)
	if err != nil {
		res.Error = fmt.Sprintf("page %d image %d: %v", img.Page, img.Index, err)
		return res
	}
	res.Symbols = append(res.Symbols, symbols...)
	return res
}
