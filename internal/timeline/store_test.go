package timeline

import (
	"errors"
	"testing"
)

func TestNewOriginalStore(t *testing.T) {
	s, err := NewOriginalStore(100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	segs := s.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected one segment, got %d", len(segs))
	}
	seg := segs[0]
	if seg.Kind != KindOriginal || seg.SourceID != MainSourceID || seg.SourceStart != 0 || seg.SourceEnd != 100 {
		t.Errorf("unexpected original segment: %+v", seg)
	}
	if s.TotalDuration() != 100 {
		t.Errorf("expected total 100, got %v", s.TotalDuration())
	}

	empty, err := NewOriginalStore(0)
	if err != nil {
		t.Fatalf("zero duration: %v", err)
	}
	if len(empty.Segments()) != 0 || empty.TotalDuration() != 0 {
		t.Errorf("expected empty store for zero duration")
	}

	if _, err := NewOriginalStore(-5); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation for negative duration, got %v", err)
	}
}

func TestStoreReplace_RejectsBrokenSequences(t *testing.T) {
	good := []Segment{
		{ID: "a", Kind: KindOriginal, VirtualStart: 0, VirtualEnd: 10, SourceID: "main", SourceStart: 0, SourceEnd: 10},
		{ID: "b", Kind: KindGenerated, VirtualStart: 10, VirtualEnd: 15, SourceID: "x", SourceStart: 0, SourceEnd: 5},
	}

	cases := []struct {
		name   string
		mutate func([]Segment) []Segment
	}{
		{"gap", func(s []Segment) []Segment { s[1].VirtualStart, s[1].VirtualEnd = 11, 16; return s }},
		{"overlap", func(s []Segment) []Segment { s[1].VirtualStart, s[1].VirtualEnd = 9, 14; return s }},
		{"not from zero", func(s []Segment) []Segment { return s[1:] }},
		{"zero length", func(s []Segment) []Segment {
			return append(s, Segment{ID: "c", VirtualStart: 15, VirtualEnd: 15, SourceID: "y"})
		}},
		{"source span mismatch", func(s []Segment) []Segment { s[1].SourceEnd = 7; return s }},
		{"duplicate id", func(s []Segment) []Segment { s[1].ID = "a"; return s }},
		{"missing id", func(s []Segment) []Segment { s[0].ID = ""; return s }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			if err := s.Replace(good); err != nil {
				t.Fatalf("seed: %v", err)
			}
			bad := tc.mutate(append([]Segment(nil), good...))
			if err := s.Replace(bad); !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("expected ErrInvariantViolation, got %v", err)
			}
			// fail closed: the previous state survives
			if s.TotalDuration() != 15 || len(s.Segments()) != 2 || s.Version() != 1 {
				t.Errorf("store changed after rejected replace: total=%v segs=%d version=%d",
					s.TotalDuration(), len(s.Segments()), s.Version())
			}
		})
	}
}

func TestStoreReplace_RecomputesTotal(t *testing.T) {
	s, _ := NewOriginalStore(100)
	next, err := InsertAt(s.Segments(), 40, "ai1", 10)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Replace(next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if s.TotalDuration() != 110 {
		t.Errorf("expected 110, got %v", s.TotalDuration())
	}
	if err := s.Replace(nil); err != nil {
		t.Fatalf("replace with empty: %v", err)
	}
	if s.TotalDuration() != 0 {
		t.Errorf("expected 0 for empty store, got %v", s.TotalDuration())
	}
}

func TestStoreSegments_ReturnsCopy(t *testing.T) {
	s, _ := NewOriginalStore(100)
	segs := s.Segments()
	segs[0].VirtualEnd = 5
	if s.Segments()[0].VirtualEnd != 100 {
		t.Fatal("mutating a snapshot changed the store")
	}
}

func TestStoreCompareAndReplace(t *testing.T) {
	s, _ := NewOriginalStore(100)
	snap := s.Snapshot()

	first, _ := InsertAt(snap.Segments, 10, "a", 5)
	if err := s.CompareAndReplace(snap.Version, first); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	second, _ := InsertAt(snap.Segments, 20, "b", 5)
	if err := s.CompareAndReplace(snap.Version, second); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
	if s.TotalDuration() != 105 {
		t.Errorf("stale commit leaked: total %v", s.TotalDuration())
	}
}
