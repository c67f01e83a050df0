package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Renders answer lines in cloned voices over the REST API.
// Output is fixed at mp3_44100_128 so the size-based duration estimate holds
// when decoding fails.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_multilingual_v2"
	elevenLabsOutputFormat = "mp3_44100_128"
	elevenLabsBitrateKbps  = 128
)

// ElevenLabsService handles text-to-speech via ElevenLabs API.
type ElevenLabsService struct {
	apiKey  string
	modelID string
	baseURL string
	client  *http.Client
}

// Ensure ElevenLabsService implements VoiceService at compile time.
var _ VoiceService = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs client. An empty model uses the
// multilingual default.
func NewElevenLabsService(apiKey, modelID string) *ElevenLabsService {
	if modelID == "" {
		modelID = elevenLabsDefaultModel
	}
	return &ElevenLabsService{
		apiKey:  apiKey,
		modelID: modelID,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// WithBaseURL points the client at another host (proxies, tests).
func (s *ElevenLabsService) WithBaseURL(baseURL string) *ElevenLabsService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// Synthesize converts text to speech in voiceID.
func (s *ElevenLabsService) Synthesize(ctx context.Context, voiceID, text string) (*VoiceClip, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("%w: no voice id", ErrSynthesisFailed)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesisFailed)
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.45, // conversational, a little livelier than narration
			SimilarityBoost: 0.85, // cloned voices must stay close to the host
			Style:           0.2,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// POST /v1/text-to-speech/{voice_id}?output_format=mp3_44100_128
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.baseURL, voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[ElevenLabs] Synthesizing (voiceID=%s, model=%s, textLen=%d)", voiceID, s.modelID, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ElevenLabs request failed: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ElevenLabs returned status %d: %s", ErrSynthesisFailed, resp.StatusCode, string(body))
	}

	// the response body is the audio file
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read ElevenLabs audio: %v", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: ElevenLabs returned empty audio", ErrSynthesisFailed)
	}

	duration, measured := clipDuration(audio, elevenLabsBitrateKbps)
	if !measured {
		log.Printf("[ElevenLabs] Could not decode mp3, estimated duration from size")
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: clip has no duration", ErrSynthesisFailed)
	}

	log.Printf("[ElevenLabs] Clip ready (%d bytes, %.2fs)", len(audio), duration)

	return &VoiceClip{
		Audio:           audio,
		DurationSeconds: duration,
		Format:          "mp3",
		ContentType:     "audio/mpeg",
	}, nil
}
