package session

import (
	"github.com/bobarin/interject/internal/services"
	"github.com/bobarin/interject/internal/timeline"
)

// Window is the stretch of transcript around a question, as captured at one
// layout version.
type Window struct {
	Lines   []timeline.TranscriptLine
	Offset  int     // transcript index of Lines[0]
	Current int     // index in Lines of the line active at the question, -1 if none
	Next    float64 // start of the line after the window, or the program end
	Total   float64
	Version uint64
}

// ContextWindow returns up to radius lines on each side of the line active at t.
func (s *Session) ContextWindow(t float64, radius int) Window {
	if radius < 0 {
		radius = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.store.Snapshot()
	w := Window{Current: -1, Next: snap.TotalDuration, Total: snap.TotalDuration, Version: snap.Version}
	if len(s.transcript) == 0 {
		return w
	}

	active := timeline.ActiveLineIndex(s.transcript, t)
	anchor := active
	if anchor < 0 {
		anchor = 0
	}
	from := anchor - radius
	if from < 0 {
		from = 0
	}
	to := anchor + radius + 1
	if to > len(s.transcript) {
		to = len(s.transcript)
	}

	w.Lines = append([]timeline.TranscriptLine{}, s.transcript[from:to]...)
	w.Offset = from
	if active >= 0 {
		w.Current = active - from
	}
	if to < len(s.transcript) {
		w.Next = s.transcript[to].Seconds
	}
	return w
}

// InsertionTime is where an answer placed after window line idx starts: the
// beginning of the following line, or the program end after the last line.
// A negative idx places it before the first line; an empty window inserts at
// the end.
func (w Window) InsertionTime(idx int) float64 {
	if len(w.Lines) == 0 {
		return w.Total
	}
	if idx < 0 {
		return w.Lines[0].Seconds
	}
	if idx >= len(w.Lines)-1 {
		return w.Next
	}
	return w.Lines[idx+1].Seconds
}

// ContextLines converts the window for the script writer.
func (w Window) ContextLines() []services.ContextLine {
	out := make([]services.ContextLine, len(w.Lines))
	for i, l := range w.Lines {
		end := w.Next
		if i+1 < len(w.Lines) {
			end = w.Lines[i+1].Seconds
		}
		out[i] = services.ContextLine{
			Index:   i,
			Speaker: l.Speaker,
			Content: l.Content,
			Seconds: l.Seconds,
			End:     end,
		}
	}
	return out
}
