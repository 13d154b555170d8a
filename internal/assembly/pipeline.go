package assembly

import (
	"context"
	"fmt"
	"time"

	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/internal/metrics"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/source"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// Resolver finds the loaded source behind every page reference.
type Resolver interface {
	ResolveRefs(refs []models.PageRef) ([]*source.Source, error)
}

// Observer is told about every state change of an assembly.
type Observer func(from, to State)

type Pipeline struct {
	sources  Resolver
	composer *layout.Composer
	metrics  *metrics.Metrics
	observer Observer
	logger   *logger.Logger
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

func WithComposer(c *layout.Composer) Option {
	return func(p *Pipeline) {
		p.composer = c
	}
}

func NewPipeline(sources Resolver, logger *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:  sources,
		composer: layout.NewComposer(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one Assemble call.
type run struct {
	p       *Pipeline
	state   State
	entered time.Time
}

func (r *run) enter(to State) {
	if !r.state.next(to) {
		panic(fmt.Sprintf("assembly: illegal transition %s -> %s", r.state, to))
	}
	now := time.Now()
	if r.state != Idle {
		r.p.metrics.ObserveStage(r.state.String(), now.Sub(r.entered))
	}
	from := r.state
	r.state, r.entered = to, now

	r.p.logger.Trace("Assembly %s -> %s", from, to)
	if r.p.observer != nil {
		r.p.observer(from, to)
	}
}

func (r *run) fail(err error) error {
	stage := r.state
	r.enter(Failed)
	r.p.metrics.ObserveAssembly(Failed.String(), 0)
	r.p.logger.Error(err, "Assembly failed while %s", stage)
	return &AssemblyError{Stage: stage, Err: err}
}

// Assemble builds one output document from refs. The refs slice is the
// caller's snapshot and is not retained. Configuration errors come back
// as layout.ErrInvalidLayoutSpec before any work; every later failure is
// an *AssemblyError and no bytes are returned.
func (p *Pipeline) Assemble(ctx context.Context, refs []models.PageRef, spec models.LayoutSpec, transforms ...Transform) ([]byte, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no pages to assemble", layout.ErrInvalidLayoutSpec)
	}
	if _, err := p.composer.Cells(spec); err != nil {
		return nil, err
	}
	if spec.InvertColors {
		transforms = append([]Transform{Invert{Mode: InvertAll}}, transforms...)
	}

	r := &run{p: p, state: Idle}

	r.enter(LoadingSources)
	parts, err := p.loadPages(ctx, refs)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(ComposingSheets)
	doc, err := p.compose(parts, refs, spec)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(ApplyingTransforms)
	out := &Output{doc: doc}
	for _, t := range transforms {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(err)
		}
		p.logger.Debug("Applying %s", t.Name())
		if err := t.Apply(ctx, out); err != nil {
			return nil, r.fail(fmt.Errorf("%s: %w", t.Name(), err))
		}
	}

	// Serialisation is not interruptible.
	r.enter(Serializing)
	data, err := out.Bytes()
	if err != nil {
		return nil, r.fail(err)
	}
	pages, err := out.PageCount()
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(Done)
	p.metrics.ObserveAssembly(Done.String(), pages)
	p.logger.Info("Assembled %d pages into %d output pages (%d bytes)", len(refs), pages, len(data))
	return data, nil
}

// loadPages extracts each referenced page as a standalone PDF, in order.
func (p *Pipeline) loadPages(ctx context.Context, refs []models.PageRef) ([][]byte, error) {
	sources, err := p.sources.ResolveRefs(refs)
	if err != nil {
		return nil, err
	}

	type key struct {
		id    models.SourceID
		index int
	}
	extracted := make(map[key][]byte)

	parts := make([][]byte, len(refs))
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k := key{ref.SourceID, ref.OriginalIndex}
		page, ok := extracted[k]
		if !ok {
			page, err = sources[i].Doc.ExtractPage(ref.OriginalIndex)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", sources[i].Info.Filename, err)
			}
			extracted[k] = page
		}
		parts[i] = page
	}
	return parts, nil
}

// compose copies pages 1:1 for one page per sheet and packs them onto
// sheets otherwise.
func (p *Pipeline) compose(parts [][]byte, refs []models.PageRef, spec models.LayoutSpec) (*pdf.Document, error) {
	doc, err := pdf.MergePages(parts)
	if err != nil {
		return nil, err
	}
	if spec.PagesPerSheet == 1 {
		return doc, nil
	}

	sizes, err := doc.PageSizes()
	if err != nil {
		return nil, err
	}
	sheets, err := p.composer.ComputeSheets(sizes, spec)
	if err != nil {
		return nil, err
	}
	if err := layout.BindRefs(sheets, refs); err != nil {
		return nil, err
	}
	for _, sheet := range sheets {
		for _, pl := range sheet.Placements {
			p.logger.Trace("Sheet %d: page %s (%s #%d) at %.1f,%.1f scale %.3f",
				sheet.Index, pl.Ref.StableID, pl.Ref.SourceID.Short(), pl.Ref.OriginalIndex, pl.Content.X, pl.Content.Y, pl.Scale)
		}
	}
	if err := doc.ComposeSheets(sheets); err != nil {
		return nil, err
	}
	p.logger.Debug("Packed %d pages onto %d sheets (%d-up %s)", len(parts), len(sheets), spec.PagesPerSheet, spec.Orientation)
	return doc, nil
}
