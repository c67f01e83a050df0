package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	audio := []byte(strings.Repeat("not an mp3 frame ", 1000))

	var gotPath, gotKey string
	var gotBody elevenLabsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	svc := NewElevenLabsService("secret", "").WithBaseURL(srv.URL)
	clip, err := svc.Synthesize(context.Background(), "voice-1", "hello there")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key not sent")
	}
	if gotBody.Text != "hello there" || gotBody.ModelID != elevenLabsDefaultModel {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
	if len(clip.Audio) != len(audio) || clip.ContentType != "audio/mpeg" {
		t.Errorf("unexpected clip: %d bytes, %q", len(clip.Audio), clip.ContentType)
	}

	// undecodable bytes fall back to the 128 kbps size estimate
	want := float64(len(audio)) / 16000
	if math.Abs(clip.DurationSeconds-want) > 1e-9 {
		t.Errorf("expected estimated duration %v, got %v", want, clip.DurationSeconds)
	}
}

func TestElevenLabsSynthesize_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/empty") {
			return
		}
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewElevenLabsService("secret", "").WithBaseURL(srv.URL)

	cases := map[string][2]string{
		"provider error": {"voice-1", "hi"},
		"empty audio":    {"empty", "hi"},
		"no voice":       {"", "hi"},
		"no text":        {"voice-1", "  "},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Synthesize(context.Background(), in[0], in[1])
			if !errors.Is(err, ErrSynthesisFailed) {
				t.Fatalf("expected ErrSynthesisFailed, got %v", err)
			}
		})
	}
}

func TestEstimateMP3Duration(t *testing.T) {
	if got := estimateMP3Duration(32000, 128); got != 2 {
		t.Errorf("expected 2s, got %v", got)
	}
	if got := estimateMP3Duration(16000, 0); got != 1 {
		t.Errorf("expected default bitrate, got %v", got)
	}
}
