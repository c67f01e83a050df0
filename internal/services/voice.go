package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// VoiceService is the common interface for cloned-voice speech providers.
// The answer pipeline resolves each speaker to a voice id through a VoiceMap
// and never talks to a provider directly.
// ---------------------------------------------------------------------------

// ErrSynthesisFailed wraps every provider-side failure to produce a clip.
var ErrSynthesisFailed = errors.New("synthesis failed")

// VoiceClip is one rendered utterance.
type VoiceClip struct {
	Audio           []byte
	DurationSeconds float64
	Format          string // "mp3", "wav", etc.
	ContentType     string
}

// VoiceService is the interface that any TTS provider must implement.
type VoiceService interface {
	// Synthesize renders text in the given voice. The returned duration must
	// be positive.
	Synthesize(ctx context.Context, voiceID, text string) (*VoiceClip, error)
}

// VoiceMap maps speaker names to provider voice ids.
type VoiceMap map[string]string

// ParseVoiceMap reads "Speaker=voiceId,Other Speaker=voiceId".
func ParseVoiceMap(s string) (VoiceMap, error) {
	m := VoiceMap{}
	if strings.TrimSpace(s) == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, id, ok := strings.Cut(pair, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("invalid voice mapping %q (want Speaker=voiceId)", pair)
		}
		m[name] = id
	}
	return m, nil
}

// Resolve returns the voice for speaker, matching case-insensitively and
// ignoring a trailing "(AI)" marker, or fallback when none is configured.
func (m VoiceMap) Resolve(speaker, fallback string) string {
	if id, ok := m[speaker]; ok {
		return id
	}
	name := normalizeSpeaker(speaker)
	for k, id := range m {
		if normalizeSpeaker(k) == name {
			return id
		}
	}
	return fallback
}

func normalizeSpeaker(s string) string {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{"(AI)", "（AI）"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	return strings.ToLower(s)
}
