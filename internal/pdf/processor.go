package pdf

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
	"github.com/kpauljoseph/pagecompose/pkg/utils"
)

const (
	// DefaultRasterDPI is enough to tell a dark page from a light one.
	DefaultRasterDPI = 36.0
	DefaultMaxSide   = 200
)

// Processor rasterises pages on a bounded pool of workers. Each worker
// opens its own fitz document so pages render in parallel.
type Processor struct {
	workers    int
	dpi        float64
	maxSide    int
	classifier *classify.Classifier
	logger     *logger.Logger
}

type ProcessorOption func(*Processor)

func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithDPI(dpi float64) ProcessorOption {
	return func(p *Processor) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// WithMaxSide caps the longest side, in pixels, of the raster handed to the
// classifier.
func WithMaxSide(px int) ProcessorOption {
	return func(p *Processor) {
		if px > 0 {
			p.maxSide = px
		}
	}
}

func NewProcessor(classifier *classify.Classifier, logger *logger.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		workers:    runtime.NumCPU(),
		dpi:        DefaultRasterDPI,
		maxSide:    DefaultMaxSide,
		classifier: classifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Workers() int {
	return p.workers
}

// ProcessPDF rasterises every page of data at low resolution and classifies
// its background. Results are indexed by page.
func (p *Processor) ProcessPDF(ctx context.Context, data []byte, progress Progress) ([]models.PageAnalysis, error) {
	var results []models.PageAnalysis

	err := p.forEachPage(ctx, data, progress, func(total int) {
		results = make([]models.PageAnalysis, total)
	}, func(doc *fitz.Document, page int) error {
		bounds, err := doc.Bound(page)
		if err != nil {
			return fmt.Errorf("failed to get bounds for page %d: %w", page, err)
		}

		img, err := doc.ImageDPI(page, p.dpi)
		if err != nil {
			return fmt.Errorf("failed to rasterise page %d: %w", page, err)
		}
		small := Downsample(img, p.maxSide)

		hash, err := utils.GenerateImageHash(small)
		if err != nil {
			return fmt.Errorf("failed to hash page %d: %w", page, err)
		}

		result := p.classifier.Classify(small)
		p.logger.Trace("Page %d: %dx%d dark=%v confidence=%.2f", page, bounds.Dx(), bounds.Dy(), result.IsDark, result.Confidence)

		results[page] = models.PageAnalysis{
			Index: page,
			Dimensions: models.PageDimensions{
				Width:  float64(bounds.Dx()),
				Height: float64(bounds.Dy()),
			},
			Classification: result,
			Hash:           hash,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// forEachPage feeds page indexes to the worker pool. start runs once the
// page count is known and before any page is handed out. The first error
// stops the remaining pages.
func (p *Processor) forEachPage(
	ctx context.Context,
	data []byte,
	progress Progress,
	start func(total int),
	fn func(doc *fitz.Document, page int) error,
) error {
	probe, err := fitz.NewFromMemory(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	total := probe.NumPage()
	probe.Close()

	start(total)
	if total == 0 {
		return nil
	}

	workers := p.workers
	if workers > total {
		workers = total
	}
	p.logger.Debug("Rasterising %d pages on %d workers", total, workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		done     int
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			doc, err := fitz.NewFromMemory(data)
			if err != nil {
				fail(fmt.Errorf("%w: %v", ErrCorruptDocument, err))
				return
			}
			defer doc.Close()

			for page := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := fn(doc, page); err != nil {
					fail(err)
					continue
				}

				mu.Lock()
				done++
				if progress != nil {
					progress(done, total)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for page := 0; page < total; page++ {
		select {
		case jobs <- page:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Downsample scales img so its longest side is at most maxSide pixels.
// Smaller images are returned unchanged.
func Downsample(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	longest := w
	if h > longest {
		longest = h
	}
	scale := float64(maxSide) / float64(longest)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
