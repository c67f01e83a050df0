package config

import (
	"strings"
	"testing"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SCRIPT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
	t.Setenv("VOICE_MAP", "Host=v1,Guest=v2")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinLeadSeconds != 20 {
		t.Errorf("MinLeadSeconds = %v, want 20", cfg.MinLeadSeconds)
	}
	if cfg.ContextRadius != 10 {
		t.Errorf("ContextRadius = %d, want 10", cfg.ContextRadius)
	}
	if cfg.FallbackDialogue {
		t.Error("FallbackDialogue should default to false")
	}
	if cfg.StorageEnabled() {
		t.Error("storage should be disabled without Supabase settings")
	}
	if cfg.InstanceID == "" {
		t.Error("InstanceID should default to the hostname")
	}
}

func TestLoadOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("MIN_LEAD_SECONDS", "15.5")
	t.Setenv("CONTEXT_RADIUS", "6")
	t.Setenv("FALLBACK_DIALOGUE", "true")
	t.Setenv("SCRIPT_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("MAX_CONCURRENT_SYNTHESIS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinLeadSeconds != 15.5 || cfg.ContextRadius != 6 || !cfg.FallbackDialogue {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ScriptProvider != "gemini" {
		t.Errorf("ScriptProvider = %q, want gemini", cfg.ScriptProvider)
	}
	if cfg.MaxConcurrentSynthesis != 3 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.MaxConcurrentSynthesis)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		ScriptProvider:         "openai",
		OpenAIKey:              "k",
		ElevenLabsKey:          "k",
		DefaultVoiceID:         "v",
		ContextRadius:          10,
		MaxConcurrentJobs:      1,
		MaxConcurrentSynthesis: 1,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.ScriptProvider = "llama" }, "SCRIPT_PROVIDER"},
		{"missing openai key", func(c *Config) { c.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"gemini without key", func(c *Config) { c.ScriptProvider = "gemini" }, "GEMINI_API_KEY"},
		{"no voices", func(c *Config) { c.DefaultVoiceID = "" }, "VOICE_MAP"},
		{"half storage", func(c *Config) { c.SupabaseURL = "https://x.supabase.co" }, "SUPABASE"},
		{"negative lead", func(c *Config) { c.MinLeadSeconds = -1 }, "MIN_LEAD_SECONDS"},
		{"zero radius", func(c *Config) { c.ContextRadius = 0 }, "CONTEXT_RADIUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
