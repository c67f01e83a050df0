package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	InstanceID         string // Names this process's answer queue (default: hostname)
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database (optional: without it sessions need an explicit duration and transcript)
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase (optional: clips are returned as data URLs without it)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Script writer
	ScriptProvider string // "openai" or "gemini"
	OpenAIKey      string
	OpenAIBaseURL  string // OpenAI-compatible endpoints (Ark, local gateways)
	OpenAIModel    string
	GeminiKey      string
	GeminiModel    string

	// ElevenLabs
	ElevenLabsKey   string
	ElevenLabsModel string
	VoiceMap        string // "Speaker=voiceId,..."
	DefaultVoiceID  string

	// Answer policy
	MinLeadSeconds   float64 // How far after the question the answer should start; passed to the writer
	ContextRadius    int     // Transcript lines on each side of the current line
	FallbackDialogue bool
	HostSpeaker      string
	GuestSpeaker     string

	// Worker
	MaxConcurrentJobs      int
	MaxConcurrentSynthesis int
	JobTimeoutSeconds      int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:                getEnv("API_PORT", "8080"),
		InstanceID:             getEnv("INSTANCE_ID", hostname()),
		BackendAPIKey:          getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:     getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "interject-clips"),
		ScriptProvider:         strings.ToLower(getEnv("SCRIPT_PROVIDER", "openai")),
		OpenAIKey:              getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:            getEnv("OPENAI_MODEL", ""),
		GeminiKey:              getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", ""),
		ElevenLabsKey:          getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsModel:        getEnv("ELEVENLABS_MODEL", ""),
		VoiceMap:               getEnv("VOICE_MAP", ""),
		DefaultVoiceID:         getEnv("DEFAULT_VOICE_ID", ""),
		MinLeadSeconds:         getEnvFloat("MIN_LEAD_SECONDS", 20),
		ContextRadius:          getEnvInt("CONTEXT_RADIUS", 10),
		FallbackDialogue:       getEnvBool("FALLBACK_DIALOGUE", false),
		HostSpeaker:            getEnv("HOST_SPEAKER", "Host (AI)"),
		GuestSpeaker:           getEnv("GUEST_SPEAKER", "Guest (AI)"),
		MaxConcurrentJobs:      getEnvInt("MAX_CONCURRENT_JOBS", 4),
		MaxConcurrentSynthesis: getEnvInt("MAX_CONCURRENT_SYNTHESIS", 3),
		JobTimeoutSeconds:      getEnvInt("JOB_TIMEOUT_SECONDS", 120),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.ScriptProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SCRIPT_PROVIDER=openai")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when SCRIPT_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("SCRIPT_PROVIDER must be openai or gemini, got %q", c.ScriptProvider)
	}

	if c.ElevenLabsKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required for voice synthesis")
	}

	if c.VoiceMap == "" && c.DefaultVoiceID == "" {
		return fmt.Errorf("VOICE_MAP or DEFAULT_VOICE_ID is required")
	}

	// Storage is all or nothing
	if (c.SupabaseURL == "") != (c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	if c.MinLeadSeconds < 0 {
		return fmt.Errorf("MIN_LEAD_SECONDS must not be negative")
	}
	if c.ContextRadius < 1 {
		return fmt.Errorf("CONTEXT_RADIUS must be at least 1")
	}
	if c.MaxConcurrentJobs < 1 || c.MaxConcurrentSynthesis < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS and MAX_CONCURRENT_SYNTHESIS must be at least 1")
	}

	return nil
}

// StorageEnabled reports whether clips go to Supabase Storage.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
