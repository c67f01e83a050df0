package timeline

import (
	"fmt"
	"math"
	"sort"
)

// TranscriptLine is one utterance positioned on the virtual timeline.
type TranscriptLine struct {
	Speaker   string  `json:"speaker"`
	Content   string  `json:"content"`
	Seconds   float64 `json:"seconds"`
	Timestamp string  `json:"timestamp,omitempty"`
	Kind      Kind    `json:"kind"`
}

// ValidateTranscript checks that lines are non-decreasing in Seconds.
func ValidateTranscript(lines []TranscriptLine) error {
	for i := 1; i < len(lines); i++ {
		if lines[i].Seconds < lines[i-1].Seconds {
			return fmt.Errorf("%w: transcript line %d at %v precedes line %d at %v",
				ErrInvariantViolation, i, lines[i].Seconds, i-1, lines[i-1].Seconds)
		}
	}
	return nil
}

// FormatTimestamp renders seconds as MM:SS, or H:MM:SS from one hour on.
func FormatTimestamp(seconds float64) string {
	if !finite(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	h, m, sec := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// SpliceTranscript re-times a transcript for an insertion of length shift at
// virtual time at. Lines at or after at move later by shift; inserted lines,
// which already carry absolute times, go in between. Moved and inserted lines
// get their Timestamp recomputed from Seconds. The input is not modified.
func SpliceTranscript(lines []TranscriptLine, at, shift float64, inserted []TranscriptLine) []TranscriptLine {
	split := sort.Search(len(lines), func(i int) bool {
		return lines[i].Seconds >= at
	})

	out := make([]TranscriptLine, 0, len(lines)+len(inserted))
	out = append(out, lines[:split]...)
	for _, l := range inserted {
		l.Timestamp = FormatTimestamp(l.Seconds)
		out = append(out, l)
	}
	for _, l := range lines[split:] {
		l.Seconds += shift
		l.Timestamp = FormatTimestamp(l.Seconds)
		out = append(out, l)
	}
	return out
}
