package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/bobarin/interject/internal/db"
	"github.com/bobarin/interject/internal/models"
	"github.com/bobarin/interject/internal/services"
	"github.com/bobarin/interject/internal/session"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EpisodeStore is the episode catalog. Optional.
type EpisodeStore interface {
	ListEpisodes(ctx context.Context) ([]models.Episode, error)
	GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error)
}

// HistoryStore reads recorded interactions. Optional.
type HistoryStore interface {
	ListSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.Interaction, error)
}

// AnswerQueue accepts answer jobs for the worker.
type AnswerQueue interface {
	EnqueueAnswer(ctx context.Context, queueName string, sessionID, questionID uuid.UUID) error
	GetQueueLength(ctx context.Context, queueName string) (int64, error)
}

// EventBus fans session events out to websocket listeners.
type EventBus interface {
	Notify(ctx context.Context, event *models.SessionEvent) error
	Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan *models.SessionEvent, error)
}

type Handler struct {
	sessions  *session.Manager
	episodes  EpisodeStore
	history   HistoryStore
	jobs      AnswerQueue
	events    EventBus
	queueName string
}

// NewHandler wires the handlers. episodes may be nil when no database is configured.
func NewHandler(sessions *session.Manager, episodes EpisodeStore, jobs AnswerQueue, events EventBus, queueName string) *Handler {
	return &Handler{
		sessions:  sessions,
		episodes:  episodes,
		jobs:      jobs,
		events:    events,
		queueName: queueName,
	}
}

// WithHistory enables GET /v1/sessions/{id}/interactions.
func (h *Handler) WithHistory(history HistoryStore) *Handler {
	h.history = history
	return h
}

// CreateSession handles POST /v1/sessions
// Body: {"episode_id": "..."} or {"duration_seconds": 1800, "transcript": [...], "audio_url": "..."}
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	audioURL := req.AudioURL
	transcript := req.Transcript
	var duration float64

	switch {
	case req.EpisodeID != nil:
		if h.episodes == nil {
			respondError(w, http.StatusBadRequest, "Episode catalog is not configured; send duration_seconds and transcript")
			return
		}
		ep, err := h.episodes.GetEpisode(r.Context(), *req.EpisodeID)
		if err != nil {
			respondFromError(w, err)
			return
		}
		duration = ep.DurationSeconds
		transcript = ep.Transcript
		if audioURL == "" {
			audioURL = ep.AudioURL
		}
	case req.DurationSeconds != nil:
		duration = *req.DurationSeconds
	default:
		respondError(w, http.StatusBadRequest, "episode_id or duration_seconds is required")
		return
	}

	if duration <= 0 {
		respondError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}

	s, err := h.sessions.Create(req.EpisodeID, audioURL, duration, transcript)
	if err != nil {
		respondFromError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, s.State())
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.State())
}

// Tick handles GET /v1/sessions/{id}/tick?t=<seconds>
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		respondError(w, http.StatusBadRequest, "Query parameter t must be a number of seconds")
		return
	}

	respondJSON(w, http.StatusOK, s.Tick(t))
}

// AskQuestion handles POST /v1/sessions/{id}/questions
// The answer is produced asynchronously; poll the question or watch events.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	q, err := s.Ask(req.Query, req.CurrentTime)
	if err != nil {
		respondFromError(w, err)
		return
	}

	if err := h.jobs.EnqueueAnswer(r.Context(), h.queueName, s.ID, q.ID); err != nil {
		log.Printf("[API] Failed to enqueue question %s: %v", q.ID, err)
		s.FailQuestion(q.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue question")
		return
	}

	respondJSON(w, http.StatusAccepted, models.AskQuestionResponse{
		QuestionID: q.ID,
		Status:     q.Status,
	})
}

// GetQuestion handles GET /v1/sessions/{id}/questions/{qid}
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	qid, err := uuid.Parse(chi.URLParam(r, "qid"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid question ID")
		return
	}

	q, err := s.Question(qid)
	if err != nil {
		respondFromError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// CancelQuestion handles DELETE /v1/sessions/{id}/questions/{qid}
func (h *Handler) CancelQuestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	qid, err := uuid.Parse(chi.URLParam(r, "qid"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid question ID")
		return
	}

	if err := s.Cancel(qid); err != nil {
		respondFromError(w, err)
		return
	}

	if h.events != nil {
		event := &models.SessionEvent{
			Type:       models.EventQuestionCancelled,
			SessionID:  s.ID,
			QuestionID: &qid,
		}
		if err := h.events.Notify(r.Context(), event); err != nil {
			log.Printf("[API] Failed to publish cancel of %s: %v", qid, err)
		}
	}

	respondJSON(w, http.StatusOK, models.AskQuestionResponse{
		QuestionID: qid,
		Status:     models.QuestionStatusCancelled,
	})
}

// ListEpisodes handles GET /v1/episodes
func (h *Handler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	if h.episodes == nil {
		respondJSON(w, http.StatusOK, models.ListEpisodesResponse{Episodes: []models.Episode{}})
		return
	}

	episodes, err := h.episodes.ListEpisodes(r.Context())
	if err != nil {
		log.Printf("[API] Failed to list episodes: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list episodes")
		return
	}
	respondJSON(w, http.StatusOK, models.ListEpisodesResponse{Episodes: episodes})
}

// ListInteractions handles GET /v1/sessions/{id}/interactions
// History outlives the in-memory session, so the session need not exist.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}
	if h.history == nil {
		respondJSON(w, http.StatusOK, models.ListInteractionsResponse{Interactions: []models.Interaction{}})
		return
	}

	interactions, err := h.history.ListSessionInteractions(r.Context(), id)
	if err != nil {
		log.Printf("[API] Failed to list interactions for session %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to list interactions")
		return
	}
	if interactions == nil {
		interactions = []models.Interaction{}
	}
	respondJSON(w, http.StatusOK, models.ListInteractionsResponse{Interactions: interactions})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		respondFromError(w, err)
		return nil, false
	}
	return s, true
}

// respondFromError maps domain errors onto HTTP statuses.
func respondFromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrQuestionNotFound),
		errors.Is(err, db.ErrEpisodeNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidQuestion),
		errors.Is(err, timeline.ErrInvalidInsertionPoint),
		errors.Is(err, timeline.ErrInvariantViolation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrQuestionCancelled),
		errors.Is(err, session.ErrQuestionClosed),
		errors.Is(err, timeline.ErrStaleSnapshot):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrScriptGenerationFailed),
		errors.Is(err, services.ErrSynthesisFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("[API] Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	}
	if n, err := h.jobs.GetQueueLength(r.Context(), h.queueName); err != nil {
		log.Printf("[API] Failed to read queue length: %v", err)
		resp["queue"] = "unavailable"
	} else {
		resp["pending_answers"] = n
	}
	respondJSON(w, http.StatusOK, resp)
}
