package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kpauljoseph/pagecompose/internal/assembly"
	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/internal/metrics"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/sequence"
	"github.com/kpauljoseph/pagecompose/internal/source"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// File is one uploaded file.
type File struct {
	Name         string
	Data         []byte
	LastModified time.Time
	// Pages selects pages as "1-3,5"; empty means all.
	Pages string
}

type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// UploadReport says what happened to each file of a batch. A failed file
// never stops the rest of the batch.
type UploadReport struct {
	Loaded     []models.SourceInfo
	Duplicates []models.SourceInfo
	Failed     []FileError
	Pages      []models.PageRef
}

func (r UploadReport) HasErrors() bool {
	return len(r.Failed) > 0
}

// Workspace is one editing session: the loaded sources, the page sequence
// built from them and the export pipeline.
type Workspace struct {
	mu       sync.RWMutex
	registry *source.Registry
	sequence *sequence.Sequence
	composer *layout.Composer
	analyzer pdf.PageAnalyzer
	metrics  *metrics.Metrics
	observer assembly.Observer
	logger   *logger.Logger
}

type Option func(*Workspace)

func WithAnalyzer(a pdf.PageAnalyzer) Option {
	return func(w *Workspace) {
		w.analyzer = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workspace) {
		w.metrics = m
	}
}

func WithComposer(c *layout.Composer) Option {
	return func(w *Workspace) {
		w.composer = c
	}
}

func WithObserver(o assembly.Observer) Option {
	return func(w *Workspace) {
		w.observer = o
	}
}

func New(logger *logger.Logger, opts ...Option) *Workspace {
	registry := source.NewRegistry(logger.With("scope", "registry"))
	w := &Workspace{
		registry: registry,
		sequence: sequence.New(registry, logger.With("scope", "sequence")),
		composer: layout.NewComposer(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Upload registers every file and appends its selected pages. Files that
// are not PDFs or fail to parse are reported and skipped.
func (w *Workspace) Upload(files ...File) UploadReport {
	w.mu.Lock()
	defer w.mu.Unlock()

	var report UploadReport
	for _, f := range files {
		src, created, err := w.registry.Register(f.Data, f.Name, f.LastModified)
		if err != nil {
			w.metrics.IncUpload(uploadResult(err))
			w.logger.Warn("Skipping %s: %v", f.Name, err)
			report.Failed = append(report.Failed, FileError{Name: f.Name, Err: err})
			continue
		}

		indices, err := sequence.ParseRange(f.Pages, src.PageCount())
		if err != nil {
			w.releaseIfUnused(src.ID())
			report.Failed = append(report.Failed, FileError{Name: f.Name, Err: err})
			continue
		}
		refs, err := w.sequence.AppendPages(src.ID(), indices)
		if err != nil {
			w.releaseIfUnused(src.ID())
			report.Failed = append(report.Failed, FileError{Name: f.Name, Err: err})
			continue
		}

		if created {
			w.metrics.IncUpload("loaded")
			report.Loaded = append(report.Loaded, src.Info)
		} else {
			w.metrics.IncUpload("duplicate")
			report.Duplicates = append(report.Duplicates, src.Info)
		}
		report.Pages = append(report.Pages, refs...)
	}

	w.logger.Info("Upload of %d files: %d loaded, %d duplicate, %d failed, %d pages in sequence",
		len(files), len(report.Loaded), len(report.Duplicates), len(report.Failed), w.sequence.Len())
	return report
}

// releaseIfUnused drops a source that was registered for a file whose
// pages then could not be added.
func (w *Workspace) releaseIfUnused(id models.SourceID) {
	if w.sequence.References(id) > 0 {
		return
	}
	if err := w.registry.Release(id); err != nil {
		w.logger.Error(err, "Failed to release unused source %s", id.Short())
	}
}

func uploadResult(err error) string {
	switch {
	case errors.Is(err, pdf.ErrUnsupportedFileType):
		return "unsupported"
	case errors.Is(err, pdf.ErrCorruptDocument):
		return "corrupt"
	}
	return "error"
}

func (w *Workspace) Pages() []models.PageRef {
	return w.sequence.ToOrderedRefs()
}

func (w *Workspace) Sources() []models.SourceInfo {
	return w.registry.List()
}

func (w *Workspace) Remove(stableID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sequence.Remove(stableID)
}

func (w *Workspace) Move(stableID string, position int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sequence.Move(stableID, position)
}

func (w *Workspace) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sequence.Clear()
}

// Analyze rasterises and classifies every page of a loaded source.
func (w *Workspace) Analyze(ctx context.Context, id models.SourceID, progress pdf.Progress) ([]models.PageAnalysis, error) {
	if w.analyzer == nil {
		return nil, errors.New("workspace has no page analyzer")
	}
	src, err := w.registry.Resolve(id)
	if err != nil {
		return nil, err
	}

	results, err := w.analyzer.ProcessPDF(ctx, src.Data, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", src.Info.Filename, err)
	}
	for _, r := range results {
		w.metrics.IncAnalyzed(r.Classification.IsDark)
	}
	return results, nil
}

// Export assembles the current sequence. The sequence and its sources are
// pinned when Export starts; edits made while it runs do not affect it.
func (w *Workspace) Export(ctx context.Context, spec models.LayoutSpec, transforms ...assembly.Transform) ([]byte, error) {
	w.mu.RLock()
	refs := w.sequence.ToOrderedRefs()
	sources, resolveErr := w.registry.ResolveRefs(refs)
	w.mu.RUnlock()

	opts := []assembly.Option{
		assembly.WithMetrics(w.metrics),
		assembly.WithComposer(w.composer),
	}
	if w.observer != nil {
		opts = append(opts, assembly.WithObserver(w.observer))
	}
	pipeline := assembly.NewPipeline(pinned{refs: refs, sources: sources, err: resolveErr}, w.logger.With("scope", "assembly"), opts...)
	return pipeline.Assemble(ctx, refs, spec, transforms...)
}

// pinned resolves the refs of one export from sources captured up front.
type pinned struct {
	refs    []models.PageRef
	sources []*source.Source
	err     error
}

func (p pinned) ResolveRefs(refs []models.PageRef) ([]*source.Source, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(refs) != len(p.refs) {
		return nil, fmt.Errorf("%w: export was pinned with %d pages, asked for %d", source.ErrDanglingPageRef, len(p.refs), len(refs))
	}
	for i := range refs {
		if refs[i] != p.refs[i] {
			return nil, fmt.Errorf("%w: page %s was not pinned", source.ErrDanglingPageRef, refs[i].StableID)
		}
	}
	return p.sources, nil
}
