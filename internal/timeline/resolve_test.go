package timeline

import (
	"math"
	"testing"
)

func TestSegmentAt(t *testing.T) {
	segs, err := InsertAt(originalOf(t, 100), 40, "ai1", 10)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	cases := []struct {
		t      float64
		source string
		ok     bool
	}{
		{0, MainSourceID, true},
		{39.999, MainSourceID, true},
		{40, "ai1", true},
		{49.5, "ai1", true},
		{50, MainSourceID, true},
		{109.9, MainSourceID, true},
		{110, "", false},
		{-0.1, "", false},
	}
	for _, tc := range cases {
		seg, ok := SegmentAt(segs, tc.t)
		if ok != tc.ok {
			t.Errorf("t=%v: expected ok=%v, got %v", tc.t, tc.ok, ok)
			continue
		}
		if ok && seg.SourceID != tc.source {
			t.Errorf("t=%v: expected source %q, got %q", tc.t, tc.source, seg.SourceID)
		}
	}

	if _, ok := SegmentAt(nil, 0); ok {
		t.Error("expected no segment in an empty timeline")
	}
}

func TestActiveLineIndex(t *testing.T) {
	lines := []TranscriptLine{{Seconds: 0}, {Seconds: 5}, {Seconds: 5}, {Seconds: 12}}

	cases := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{4.9, 0},
		{5, 2}, // ties go to the last line at that timestamp
		{11, 2},
		{12, 3},
		{500, 3},
		{math.NaN(), -1},
		{math.Inf(1), -1},
		{math.Inf(-1), -1},
	}
	for _, tc := range cases {
		if got := ActiveLineIndex(lines, tc.t); got != tc.want {
			t.Errorf("t=%v: expected %d, got %d", tc.t, tc.want, got)
		}
	}

	late := []TranscriptLine{{Seconds: 3}, {Seconds: 8}}
	if got := ActiveLineIndex(late, 1); got != -1 {
		t.Errorf("expected -1 before the first line, got %d", got)
	}
	if got := ActiveLineIndex(nil, 1); got != -1 {
		t.Errorf("expected -1 for empty transcript, got %d", got)
	}
}
