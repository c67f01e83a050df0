package timeline

import (
	"fmt"
	"math"
	"sync"
)

// sourceTolerance absorbs float rounding when comparing a segment's source
// span against its virtual span.
const sourceTolerance = 1e-6

// Snapshot is a consistent read of the store at one version.
type Snapshot struct {
	Segments      []Segment
	TotalDuration float64
	Version       uint64
}

// Store holds the ordered segment sequence. Replace is the only mutation and
// swaps the whole sequence at once, so readers never see a partial splice.
type Store struct {
	mu       sync.RWMutex
	segments []Segment
	total    float64
	version  uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// NewOriginalStore returns a store holding a single original segment that
// spans the whole pre-recorded asset. A zero duration yields an empty store.
func NewOriginalStore(totalDuration float64) (*Store, error) {
	if !finite(totalDuration) || totalDuration < 0 {
		return nil, fmt.Errorf("%w: original duration %v", ErrInvariantViolation, totalDuration)
	}
	s := NewStore()
	if totalDuration == 0 {
		return s, nil
	}
	err := s.Replace([]Segment{{
		ID:           MainSourceID,
		Kind:         KindOriginal,
		VirtualStart: 0,
		VirtualEnd:   totalDuration,
		SourceID:     MainSourceID,
		SourceStart:  0,
		SourceEnd:    totalDuration,
	}})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Segments returns a copy of the current sequence.
func (s *Store) Segments() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSegments(s.segments)
}

// TotalDuration is the end of the last segment, or 0 when empty.
func (s *Store) TotalDuration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Version increments on every successful Replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Segments:      cloneSegments(s.segments),
		TotalDuration: s.total,
		Version:       s.version,
	}
}

// SegmentAt resolves t against the current sequence.
func (s *Store) SegmentAt(t float64) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SegmentAt(s.segments, t)
}

// Replace validates segments and swaps them in. On error the previous state
// is kept unchanged.
func (s *Store) Replace(segments []Segment) error {
	if err := Validate(segments); err != nil {
		return err
	}
	next := cloneSegments(segments)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(next)
	return nil
}

// CompareAndReplace is Replace guarded by the version the caller computed
// against.
func (s *Store) CompareAndReplace(version uint64, segments []Segment) error {
	if err := Validate(segments); err != nil {
		return err
	}
	next := cloneSegments(segments)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return fmt.Errorf("%w: have version %d, want %d", ErrStaleSnapshot, s.version, version)
	}
	s.commit(next)
	return nil
}

func (s *Store) commit(next []Segment) {
	s.segments = next
	s.total = totalOf(next)
	s.version++
}

// Validate checks ordering, contiguity from zero, positive length, duration
// preservation, and id uniqueness.
func Validate(segments []Segment) error {
	seen := make(map[string]struct{}, len(segments))
	for i, seg := range segments {
		if seg.ID == "" {
			return fmt.Errorf("%w: segment %d has no id", ErrInvariantViolation, i)
		}
		if _, dup := seen[seg.ID]; dup {
			return fmt.Errorf("%w: duplicate segment id %q", ErrInvariantViolation, seg.ID)
		}
		seen[seg.ID] = struct{}{}

		if !finite(seg.VirtualStart) || !finite(seg.VirtualEnd) {
			return fmt.Errorf("%w: segment %q has non-finite bounds", ErrInvariantViolation, seg.ID)
		}
		if seg.VirtualEnd <= seg.VirtualStart {
			return fmt.Errorf("%w: segment %q is empty or reversed [%v, %v)",
				ErrInvariantViolation, seg.ID, seg.VirtualStart, seg.VirtualEnd)
		}
		if math.Abs((seg.SourceEnd-seg.SourceStart)-seg.Duration()) > sourceTolerance {
			return fmt.Errorf("%w: segment %q source span %v != virtual span %v",
				ErrInvariantViolation, seg.ID, seg.SourceEnd-seg.SourceStart, seg.Duration())
		}

		if i == 0 {
			if seg.VirtualStart != 0 {
				return fmt.Errorf("%w: first segment starts at %v", ErrInvariantViolation, seg.VirtualStart)
			}
			continue
		}
		prev := segments[i-1]
		if prev.VirtualEnd != seg.VirtualStart {
			return fmt.Errorf("%w: gap or overlap between %q (ends %v) and %q (starts %v)",
				ErrInvariantViolation, prev.ID, prev.VirtualEnd, seg.ID, seg.VirtualStart)
		}
	}
	return nil
}

func totalOf(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].VirtualEnd
}

func cloneSegments(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}
