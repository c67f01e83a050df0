package timeline

import (
	"fmt"

	"github.com/google/uuid"
)

// newSegmentID is swapped in tests for deterministic ids.
var newSegmentID = uuid.NewString

// Clip is one generated audio asset waiting to be spliced in.
type Clip struct {
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration_seconds"`
}

// EffectiveInsertTime is where an insertion at t actually lands: t itself when
// it falls inside the program, otherwise the current end.
func EffectiveInsertTime(segments []Segment, t float64) float64 {
	if total := totalOf(segments); t >= total {
		return total
	}
	return t
}

// InsertAt splits the segment containing at, places a generated segment of
// length duration there, and shifts everything after it. The input slice is
// not modified. Insertion at or past the end appends.
func InsertAt(segments []Segment, at float64, sourceID string, duration float64) ([]Segment, error) {
	if !finite(at) || at < 0 {
		return nil, fmt.Errorf("%w: insert time %v", ErrInvalidInsertionPoint, at)
	}
	if !finite(duration) || duration <= 0 {
		return nil, fmt.Errorf("%w: clip duration %v", ErrInvalidInsertionPoint, duration)
	}
	if sourceID == "" {
		return nil, fmt.Errorf("%w: empty source id", ErrInvalidInsertionPoint)
	}

	idx := indexAt(segments, at)
	if idx < 0 {
		start := totalOf(segments)
		out := make([]Segment, 0, len(segments)+1)
		out = append(out, segments...)
		return append(out, generatedSegment(sourceID, start, duration)), nil
	}

	target := segments[idx]
	out := make([]Segment, 0, len(segments)+2)
	out = append(out, segments[:idx]...)

	if at > target.VirtualStart {
		before := target
		before.VirtualEnd = at
		before.SourceEnd = target.SourceOffset(at)
		out = append(out, before)
	}

	out = append(out, generatedSegment(sourceID, at, duration))

	if at < target.VirtualEnd {
		after := target
		// the target's id stays with the leading fragment when there is one
		if at > target.VirtualStart {
			after.ID = newSegmentID()
		}
		after.VirtualStart = at + duration
		after.VirtualEnd = target.VirtualEnd + duration
		after.SourceStart = target.SourceOffset(at)
		out = append(out, after)
	}

	for _, seg := range segments[idx+1:] {
		seg.VirtualStart += duration
		seg.VirtualEnd += duration
		out = append(out, seg)
	}
	return out, nil
}

// InsertSequence splices clips back to back starting at at, so a multi-line
// answer stays contiguous. It returns the new sequence and the virtual time
// where the first clip landed.
func InsertSequence(segments []Segment, at float64, clips []Clip) ([]Segment, float64, error) {
	if len(clips) == 0 {
		return nil, 0, fmt.Errorf("%w: no clips to insert", ErrInvalidInsertionPoint)
	}
	if !finite(at) || at < 0 {
		return nil, 0, fmt.Errorf("%w: insert time %v", ErrInvalidInsertionPoint, at)
	}

	start := EffectiveInsertTime(segments, at)
	cursor := start
	out := segments
	for i, c := range clips {
		next, err := InsertAt(out, cursor, c.SourceID, c.Duration)
		if err != nil {
			return nil, 0, fmt.Errorf("clip %d (%s): %w", i, c.SourceID, err)
		}
		out = next
		cursor += c.Duration
	}
	return out, start, nil
}

func generatedSegment(sourceID string, start, duration float64) Segment {
	return Segment{
		ID:           newSegmentID(),
		Kind:         KindGenerated,
		VirtualStart: start,
		VirtualEnd:   start + duration,
		SourceID:     sourceID,
		SourceStart:  0,
		SourceEnd:    duration,
	}
}
