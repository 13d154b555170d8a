package pdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/kpauljoseph/pagecompose/pkg/logger"
)

const DefaultThumbnailSide = 256

// Thumbnailer writes one PNG preview per page, rendered on the processor's
// worker pool.
type Thumbnailer struct {
	outputDir string
	maxSide   int
	processor *Processor
	logger    *logger.Logger
}

func NewThumbnailer(outputDir string, maxSide int, processor *Processor, logger *logger.Logger) (*Thumbnailer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if maxSide <= 0 {
		maxSide = DefaultThumbnailSide
	}
	return &Thumbnailer{
		outputDir: outputDir,
		maxSide:   maxSide,
		processor: processor,
		logger:    logger,
	}, nil
}

// Write renders every page of data to <baseName>_p<NNN>.png and returns the
// paths in page order.
func (t *Thumbnailer) Write(ctx context.Context, data []byte, baseName string, progress Progress) ([]string, error) {
	var paths []string

	err := t.processor.forEachPage(ctx, data, progress, func(total int) {
		paths = make([]string, total)
	}, func(doc *fitz.Document, page int) error {
		img, err := doc.ImageDPI(page, 72)
		if err != nil {
			return fmt.Errorf("failed to render page %d: %w", page, err)
		}

		path := filepath.Join(t.outputDir, fmt.Sprintf("%s_p%03d.png", baseName, page+1))
		if err := t.saveImage(Downsample(img, t.maxSide), path); err != nil {
			return fmt.Errorf("failed to save thumbnail for page %d: %w", page, err)
		}
		t.logger.Debug("Created thumbnail: %s", path)
		paths[page] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (t *Thumbnailer) saveImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}
