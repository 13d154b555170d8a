package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/kpauljoseph/pagecompose/pkg/models"
)

var ErrCorruptDocument = errors.New("corrupt document")

func init() {
	// No pdfcpu config file under the user's home directory.
	api.DisableConfigDir()
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Document is a parsed PDF held in memory. Page numbers on its methods are
// 0-based. A Document is safe for concurrent use.
type Document struct {
	mu  sync.Mutex
	ctx *model.Context
}

func Load(data []byte) (*Document, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrCorruptDocument)
	}
	return &Document{ctx: ctx}, nil
}

func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx.PageCount
}

// PageSizes returns each page's visible size in points: the crop box (or
// media box) with width and height swapped for pages rotated by 90 or 270.
func (d *Document) PageSizes() ([]models.PageDimensions, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sizes := make([]models.PageDimensions, d.ctx.PageCount)
	for i := range sizes {
		box, rotate, err := d.pageGeometry(i + 1)
		if err != nil {
			return nil, err
		}
		w, h := box.Width(), box.Height()
		if rotate == 90 || rotate == 270 {
			w, h = h, w
		}
		sizes[i] = models.PageDimensions{Width: w, Height: h}
	}
	return sizes, nil
}

// ExtractPage writes a standalone single-page PDF holding page index.
func (d *Document) ExtractPage(index int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of range [0,%d)", index, d.ctx.PageCount)
	}

	page, err := pdfcpu.ExtractPages(d.ctx, []int{index + 1}, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", index, err)
	}

	var out bytes.Buffer
	if err := api.WriteContext(page, &out); err != nil {
		return nil, fmt.Errorf("failed to write page %d: %w", index, err)
	}
	return out.Bytes(), nil
}

// MergePages concatenates single-page (or multi-page) PDFs in order into a
// new document.
func MergePages(parts [][]byte) (*Document, error) {
	switch len(parts) {
	case 0:
		return nil, errors.New("nothing to merge")
	case 1:
		return Load(parts[0])
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, part := range parts {
		readers[i] = bytes.NewReader(part)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to merge %d pages: %w", len(parts), err)
	}
	return Load(out.Bytes())
}

func (d *Document) Bytes() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out bytes.Buffer
	if err := api.WriteContext(d.ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return out.Bytes(), nil
}

// pageGeometry returns the visible box of a 1-based page and its rotation
// normalised to 0, 90, 180 or 270.
func (d *Document) pageGeometry(nr int) (*types.Rectangle, int, error) {
	_, _, inh, err := d.ctx.PageDict(nr, false)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read page %d: %w", nr-1, err)
	}
	if inh == nil {
		return nil, 0, fmt.Errorf("page %d has no inherited attributes", nr-1)
	}

	box := inh.CropBox
	if box == nil {
		box = inh.MediaBox
	}
	if box == nil {
		return nil, 0, fmt.Errorf("page %d has no media box", nr-1)
	}
	return box, normalizeRotation(inh.Rotate), nil
}

func normalizeRotation(rotate int) int {
	r := rotate % 360
	if r < 0 {
		r += 360
	}
	switch r {
	case 90, 180, 270:
		return r
	}
	return 0
}

func (d *Document) newStream(content []byte) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}
