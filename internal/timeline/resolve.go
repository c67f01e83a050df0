package timeline

import "sort"

// SegmentAt returns the segment with VirtualStart <= t < VirtualEnd. It
// reports false when t is outside [0, total).
func SegmentAt(segments []Segment, t float64) (Segment, bool) {
	idx := indexAt(segments, t)
	if idx < 0 {
		return Segment{}, false
	}
	return segments[idx], true
}

// ActiveLineIndex returns the last line whose Seconds <= t, or -1 when t is
// before the first line or not a finite number. Lines sharing a timestamp
// resolve to the highest index, so a later-inserted line wins the tie.
func ActiveLineIndex(lines []TranscriptLine, t float64) int {
	if !finite(t) {
		return -1
	}
	// first line strictly after t
	next := sort.Search(len(lines), func(i int) bool {
		return lines[i].Seconds > t
	})
	return next - 1
}

func indexAt(segments []Segment, t float64) int {
	if !finite(t) || t < 0 {
		return -1
	}
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].VirtualEnd > t
	})
	if i < len(segments) && segments[i].Contains(t) {
		return i
	}
	return -1
}
