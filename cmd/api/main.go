package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/interject/internal/api"
	"github.com/bobarin/interject/internal/config"
	"github.com/bobarin/interject/internal/db"
	"github.com/bobarin/interject/internal/queue"
	"github.com/bobarin/interject/internal/services"
	"github.com/bobarin/interject/internal/session"
	"github.com/bobarin/interject/internal/storage"
	"github.com/bobarin/interject/internal/worker"
)

func main() {
	log.Println("Starting Interject API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	voices, err := services.ParseVoiceMap(cfg.VoiceMap)
	if err != nil {
		log.Fatalf("Invalid VOICE_MAP: %v", err)
	}

	// Connect to database (optional)
	var episodes api.EpisodeStore
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		episodes = database
		log.Println("Connected to database")
	} else {
		log.Println("No DATABASE_URL set: episode catalog and interaction history disabled")
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	queueName := queue.AnswerQueueName(cfg.InstanceID)
	log.Printf("Connected to Redis queue (%s)", queueName)

	// Clip storage: Supabase when configured, inline data URLs otherwise
	var publisher session.ClipPublisher = storage.DataURLPublisher{}
	if cfg.StorageEnabled() {
		publisher = storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		log.Printf("Initialized Supabase storage (bucket: %s)", cfg.SupabaseStorageBucket)
	} else {
		log.Println("No Supabase storage configured: clips are returned as data URLs")
	}

	// Script writer
	var scriptSvc services.ScriptService
	switch cfg.ScriptProvider {
	case "gemini":
		gemini, err := services.NewGeminiScriptService(context.Background(), cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini: %v", err)
		}
		scriptSvc = gemini
	default:
		scriptSvc = services.NewOpenAIScriptService(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	log.Printf("Script provider: %s (min lead %.0fs, context radius %d, fallback %v)",
		cfg.ScriptProvider, cfg.MinLeadSeconds, cfg.ContextRadius, cfg.FallbackDialogue)

	// Voices
	voiceSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsModel)
	log.Printf("Voice provider: ElevenLabs (%d mapped speakers)", len(voices))

	sessions := session.NewManager()
	answerer := session.NewAnswerer(scriptSvc, voiceSvc, voices, publisher, session.AnswererConfig{
		MinLeadSeconds:         cfg.MinLeadSeconds,
		ContextRadius:          cfg.ContextRadius,
		FallbackDialogue:       cfg.FallbackDialogue,
		MaxConcurrentSynthesis: cfg.MaxConcurrentSynthesis,
		DefaultVoiceID:         cfg.DefaultVoiceID,
		HostSpeaker:            cfg.HostSpeaker,
		GuestSpeaker:           cfg.GuestSpeaker,
	}).WithNotifier(q)
	if database != nil {
		answerer.WithRecorder(database)
	}

	// Create API handler
	handler := api.NewHandler(sessions, episodes, q, q, queueName)
	if database != nil {
		handler.WithHistory(database)
	}
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Sessions live in this process, so the worker always runs here too
	workerCtx, workerCancel := context.WithCancel(context.Background())
	w := worker.New(q, queueName, sessions, answerer, time.Duration(cfg.JobTimeoutSeconds)*time.Second)
	go w.Start(workerCtx, cfg.MaxConcurrentJobs)

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
