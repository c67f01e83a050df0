package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// bracketIndex matches the 【17】 answer style some models fall back to.
var bracketIndex = regexp.MustCompile(`【(\d+)】`)

// scriptReply mirrors Script but keeps a missing insert_after distinguishable
// from an explicit 0.
type scriptReply struct {
	InsertAfter *int           `json:"insert_after"`
	Lines       []DialogueLine `json:"lines"`
	Reason      string         `json:"reason"`
}

// parseScriptReply decodes a model reply into a Script. It tolerates code
// fences and chatter around the JSON object. When the reply names no
// insertion index, a bracketed 【N】 in the raw text is used, then
// currentIndex.
func parseScriptReply(raw string, currentIndex int) (*Script, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptGenerationFailed, err)
	}

	var reply scriptReply
	if err := sonic.UnmarshalString(obj, &reply); err != nil {
		return nil, fmt.Errorf("%w: failed to parse script: %v", ErrScriptGenerationFailed, err)
	}

	s := &Script{
		InsertAfterIndex: currentIndex,
		Lines:            reply.Lines,
		Reason:           reply.Reason,
	}
	if reply.InsertAfter != nil {
		s.InsertAfterIndex = *reply.InsertAfter
	} else {
		// models sometimes answer the index in brackets inside "reason"
		if m := bracketIndex.FindStringSubmatch(raw); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				s.InsertAfterIndex = n
			}
		}
	}
	return s, nil
}

func extractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty reply")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return s[start : end+1], nil
}
