package sequence

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

var (
	ErrPageNotFound = errors.New("page not in sequence")
	ErrPageIndex    = errors.New("page index out of range")
)

// Sources is the part of the source registry the sequence needs: page
// counts to validate appends, and Release once the last page of a source
// has been removed.
type Sources interface {
	PageCount(id models.SourceID) (int, error)
	Release(id models.SourceID) error
}

// Sequence is the ordered, user-edited list of page references. Insertion
// order is output order. It is safe for concurrent use; ToOrderedRefs hands
// out copies so an export never sees a half-applied edit.
type Sequence struct {
	mu      sync.RWMutex
	refs    []models.PageRef
	holds   map[models.SourceID]int
	issued  map[string]struct{}
	sources Sources
	newID   func() string
	logger  *logger.Logger
}

type Option func(*Sequence)

// WithIDGenerator replaces uuid.NewString. Generated IDs must be unique.
func WithIDGenerator(fn func() string) Option {
	return func(s *Sequence) {
		s.newID = fn
	}
}

func New(sources Sources, logger *logger.Logger, opts ...Option) *Sequence {
	s := &Sequence{
		holds:   make(map[models.SourceID]int),
		issued:  make(map[string]struct{}),
		sources: sources,
		newID:   uuid.NewString,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendPages adds one reference per index, in the given order, at the tail.
// Either every index is appended or none is.
//
// The source is checked under the sequence lock, the same lock Remove and
// Clear hold while releasing, so a page can never be added to a source that
// is being released.
func (s *Sequence) AppendPages(sourceID models.SourceID, indices []int) ([]models.PageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.sources.PageCount(sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to append pages of %s: %w", sourceID.Short(), err)
	}
	for _, idx := range indices {
		if idx < 0 || idx >= count {
			return nil, fmt.Errorf("%w: %d not in [0,%d) for source %s", ErrPageIndex, idx, count, sourceID.Short())
		}
	}

	added := make([]models.PageRef, 0, len(indices))
	for _, idx := range indices {
		id, err := s.issueID()
		if err != nil {
			for _, r := range added {
				delete(s.issued, r.StableID)
			}
			return nil, err
		}
		added = append(added, models.PageRef{
			StableID:      id,
			SourceID:      sourceID,
			OriginalIndex: idx,
		})
	}

	s.refs = append(s.refs, added...)
	s.holds[sourceID] += len(added)

	s.logger.Debug("Appended %d pages of source %s, sequence length %d", len(added), sourceID.Short(), len(s.refs))
	return added, nil
}

// AppendAll appends every page of the source in original order.
func (s *Sequence) AppendAll(sourceID models.SourceID) ([]models.PageRef, error) {
	count, err := s.sources.PageCount(sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to append pages of %s: %w", sourceID.Short(), err)
	}
	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return s.AppendPages(sourceID, indices)
}

// Remove deletes the reference. Removing the last page of a source
// releases that source before the lock is given up.
func (s *Sequence) Remove(stableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOf(stableID)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, stableID)
	}

	ref := s.refs[pos]
	s.refs = append(s.refs[:pos], s.refs[pos+1:]...)
	release := s.drop(ref.SourceID, 1)

	s.logger.Debug("Removed page %s (source %s, page %d)", stableID, ref.SourceID.Short(), ref.OriginalIndex)
	if release {
		return s.release(ref.SourceID)
	}
	return nil
}

// Move takes the page out and reinserts it at newPosition, clamped to
// [0, len-1]. Moving a page to where it already is changes nothing.
func (s *Sequence) Move(stableID string, newPosition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOf(stableID)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, stableID)
	}

	last := len(s.refs) - 1
	if newPosition < 0 {
		newPosition = 0
	}
	if newPosition > last {
		newPosition = last
	}
	if newPosition == pos {
		return nil
	}

	ref := s.refs[pos]
	if newPosition < pos {
		copy(s.refs[newPosition+1:pos+1], s.refs[newPosition:pos])
	} else {
		copy(s.refs[pos:newPosition], s.refs[pos+1:newPosition+1])
	}
	s.refs[newPosition] = ref

	s.logger.Trace("Moved page %s from %d to %d", stableID, pos, newPosition)
	return nil
}

// MoveTo places the page where target currently is, the way a drag-and-drop
// list reorders when one item is dropped on another.
func (s *Sequence) MoveTo(stableID, targetID string) error {
	pos, ok := s.Position(targetID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, targetID)
	}
	return s.Move(stableID, pos)
}

func (s *Sequence) Position(stableID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos := s.indexOf(stableID)
	return pos, pos >= 0
}

// ToOrderedRefs returns a copy of the current order.
func (s *Sequence) ToOrderedRefs() []models.PageRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PageRef, len(s.refs))
	copy(out, s.refs)
	return out
}

func (s *Sequence) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// References reports how many live pages point at the source.
func (s *Sequence) References(sourceID models.SourceID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holds[sourceID]
}

// Clear removes every page and releases every source they referenced.
func (s *Sequence) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]models.SourceID, 0, len(s.holds))
	for id := range s.holds {
		sources = append(sources, id)
	}
	s.refs = nil
	s.holds = make(map[models.SourceID]int)

	var errs []error
	for _, id := range sources {
		if err := s.release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sequence) indexOf(stableID string) int {
	for i := range s.refs {
		if s.refs[i].StableID == stableID {
			return i
		}
	}
	return -1
}

func (s *Sequence) issueID() (string, error) {
	id := s.newID()
	if _, dup := s.issued[id]; dup {
		return "", fmt.Errorf("stable id %s was already issued", id)
	}
	s.issued[id] = struct{}{}
	return id, nil
}

// drop reports whether n was the last hold on the source.
func (s *Sequence) drop(id models.SourceID, n int) bool {
	s.holds[id] -= n
	if s.holds[id] > 0 {
		return false
	}
	delete(s.holds, id)
	return true
}

// release must be called with s.mu held.
func (s *Sequence) release(id models.SourceID) error {
	if err := s.sources.Release(id); err != nil {
		return fmt.Errorf("failed to release source %s: %w", id.Short(), err)
	}
	s.logger.Debug("Released source %s", id.Short())
	return nil
}
