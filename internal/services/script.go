package services

import (
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// ScriptService writes the short dialogue that answers a listener question
// and picks where in the surrounding transcript it should be spliced.
// ---------------------------------------------------------------------------

// ErrScriptGenerationFailed wraps transport, parse, and validation failures
// of a script provider.
var ErrScriptGenerationFailed = errors.New("script generation failed")

// ContextLine is one transcript line offered to the script writer. Index is
// its position inside the window; End is when the following line starts.
type ContextLine struct {
	Index   int     `json:"index"`
	Speaker string  `json:"speaker"`
	Content string  `json:"content"`
	Seconds float64 `json:"seconds"`
	End     float64 `json:"end"`
}

// DialogueLine is one spoken line of the generated answer.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ScriptRequest carries the question and the transcript around the moment it
// was asked. MinLeadSeconds asks the writer to leave at least that much time
// before the insertion point; the timeline does not enforce it.
type ScriptRequest struct {
	Query          string
	CurrentTime    float64
	ContextLines   []ContextLine
	CurrentIndex   int
	MinLeadSeconds float64
	HostSpeaker    string
	GuestSpeaker   string
}

// Script is the writer's answer: insert after ContextLines[InsertAfterIndex].
type Script struct {
	InsertAfterIndex int            `json:"insert_after"`
	Lines            []DialogueLine `json:"lines"`
	Reason           string         `json:"reason,omitempty"`
}

type ScriptService interface {
	GenerateScript(ctx context.Context, req ScriptRequest) (*Script, error)
}

// FallbackScript is used when the writer fails and fallbacks are enabled: the
// host restates the question and the guest gives a holding answer right after
// the current line.
func FallbackScript(req ScriptRequest) *Script {
	host, guest := speakersOrDefault(req)
	return &Script{
		InsertAfterIndex: req.CurrentIndex,
		Lines: []DialogueLine{
			{Speaker: host, Text: fmt.Sprintf("Quick one from a listener here: %q. What's your take?", req.Query)},
			{Speaker: guest, Text: "Good question. Honestly, we thought about that a lot while making this, and I'd say the tools only amplify the ideas you already bring to them."},
		},
		Reason: "fallback dialogue",
	}
}

func speakersOrDefault(req ScriptRequest) (string, string) {
	host, guest := req.HostSpeaker, req.GuestSpeaker
	if host == "" {
		host = "Host (AI)"
	}
	if guest == "" {
		guest = "Guest (AI)"
	}
	return host, guest
}

// validateScript clamps the insertion index into the window and rejects
// empty dialogue.
func validateScript(s *Script, req ScriptRequest) error {
	if len(s.Lines) == 0 {
		return fmt.Errorf("%w: script has no lines", ErrScriptGenerationFailed)
	}
	for i, l := range s.Lines {
		var missing []string
		if l.Speaker == "" {
			missing = append(missing, "speaker")
		}
		if l.Text == "" {
			missing = append(missing, "text")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: line %d missing required fields: %v", ErrScriptGenerationFailed, i, missing)
		}
	}
	if n := len(req.ContextLines); n > 0 {
		if s.InsertAfterIndex < 0 {
			s.InsertAfterIndex = 0
		}
		if s.InsertAfterIndex >= n {
			s.InsertAfterIndex = n - 1
		}
	}
	return nil
}
