package services

import (
	"fmt"
	"strings"
)

func buildScriptSystemPrompt(req ScriptRequest) string {
	host, guest := speakersOrDefault(req)
	return fmt.Sprintf(`You understand podcast conversations deeply: the speakers' tone, and the logic that connects one line to the next.

A listener has interrupted the episode with a question. You do two things:

1. PICK WHERE TO ANSWER.
   You get up to %[3]d numbered lines of context. Line %[4]d is what was being said when the listener asked.
   Return the number of the line AFTER which the answer should start.
   - The answer must start at least %[5]v seconds after the moment of the question, so audio can be prepared in time. This is the first priority.
   - Do not place the answer right after a line that asks a question.
   - If the topic relates to the surrounding conversation, pick a spot where it follows naturally. A small jump is acceptable.

2. WRITE THE ANSWER as a short spoken exchange.
   - "%[1]s" briefly relays the listener's question in their own voice, then "%[2]s" answers.
   - Conversational, like real podcast talk. The whole exchange stays under about 25 seconds of speech.
   - Write in the same language as the context lines.
   - Use only these two speaker names, exactly as written.

Reply with JSON only:
{"insert_after": <line number>, "reason": "<one sentence>", "lines": [{"speaker": "...", "text": "..."}]}`,
		host, guest, len(req.ContextLines), req.CurrentIndex, req.MinLeadSeconds)
}

func buildScriptUserPrompt(req ScriptRequest) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, l := range req.ContextLines {
		fmt.Fprintf(&sb, "%d. [%.1fs] %s: %s\n", l.Index, l.Seconds, l.Speaker, l.Content)
	}
	fmt.Fprintf(&sb, "\nListener question: %s (asked at %.1fs)\n", req.Query, req.CurrentTime)
	return sb.String()
}
