package source

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
	"github.com/kpauljoseph/pagecompose/pkg/utils"
)

var (
	ErrNotFound = errors.New("source not found")
	// ErrDanglingPageRef means a page reference outlived its source. It is a
	// bug in the caller, never a user error.
	ErrDanglingPageRef = errors.New("dangling page reference")
)

// Source is one loaded document. It is immutable once registered.
type Source struct {
	Info models.SourceInfo
	Data []byte
	Doc  *pdf.Document
}

func (s *Source) ID() models.SourceID { return s.Info.ID }

func (s *Source) PageCount() int { return s.Info.PageCount }

// Registry owns loaded source documents keyed by the SHA-256 of their
// bytes. Registering the same bytes twice returns the entry already held.
type Registry struct {
	mu      sync.RWMutex
	sources map[models.SourceID]*Source
	logger  *logger.Logger
}

func NewRegistry(logger *logger.Logger) *Registry {
	return &Registry{
		sources: make(map[models.SourceID]*Source),
		logger:  logger,
	}
}

// Register sniffs, parses and stores data. The second return is false when
// the document was already registered.
func (r *Registry) Register(data []byte, filename string, lastModified time.Time) (*Source, bool, error) {
	if _, err := pdf.DetectFileType(data); err != nil {
		return nil, false, fmt.Errorf("%s: %w", filename, err)
	}

	id := models.SourceID(utils.ContentHash(data))

	r.mu.RLock()
	existing, ok := r.sources[id]
	r.mu.RUnlock()
	if ok {
		r.logger.Debug("Source %s already registered as %s", filename, id.Short())
		return existing, false, nil
	}

	doc, err := pdf.Load(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", filename, err)
	}

	src := &Source{
		Info: models.SourceInfo{
			ID:           id,
			Filename:     filename,
			Size:         int64(len(data)),
			LastModified: lastModified,
			PageCount:    doc.PageCount(),
		},
		Data: data,
		Doc:  doc,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Lost a race with a concurrent Register of the same bytes.
	if existing, ok := r.sources[id]; ok {
		return existing, false, nil
	}
	r.sources[id] = src

	r.logger.Info("Registered %s (%d pages) as %s", filename, src.Info.PageCount, id.Short())
	return src, true, nil
}

func (r *Registry) Resolve(id models.SourceID) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Short())
	}
	return src, nil
}

func (r *Registry) PageCount(id models.SourceID) (int, error) {
	src, err := r.Resolve(id)
	if err != nil {
		return 0, err
	}
	return src.PageCount(), nil
}

// Release drops the source. The sequence calls it once no page refers to
// the source any more.
func (r *Registry) Release(id models.SourceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Short())
	}
	delete(r.sources, id)
	r.logger.Debug("Released %s (%s)", src.Info.Filename, id.Short())
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// List returns registered sources ordered by filename.
func (r *Registry) List() []models.SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SourceInfo, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src.Info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolveRefs resolves the source of every ref and checks each index. Any
// failure is reported as ErrDanglingPageRef.
func (r *Registry) ResolveRefs(refs []models.PageRef) ([]*Source, error) {
	out := make([]*Source, len(refs))
	for i, ref := range refs {
		src, err := r.Resolve(ref.SourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: page %s: %v", ErrDanglingPageRef, ref.StableID, err)
		}
		if ref.OriginalIndex < 0 || ref.OriginalIndex >= src.PageCount() {
			return nil, fmt.Errorf("%w: page %s index %d, source %s has %d pages",
				ErrDanglingPageRef, ref.StableID, ref.OriginalIndex, ref.SourceID.Short(), src.PageCount())
		}
		out[i] = src
	}
	return out, nil
}
