package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
)

// Enums
type QuestionStatus string

const (
	QuestionStatusPending   QuestionStatus = "pending"
	QuestionStatusAnswered  QuestionStatus = "answered"
	QuestionStatusFailed    QuestionStatus = "failed"
	QuestionStatusCancelled QuestionStatus = "cancelled"
)

type EventType string

const (
	EventTimelineUpdated   EventType = "timeline_updated"
	EventQuestionFailed    EventType = "question_failed"
	EventQuestionCancelled EventType = "question_cancelled"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

type Episode struct {
	ID              uuid.UUID                 `json:"id"`
	Title           string                    `json:"title"`
	AudioURL        string                    `json:"audio_url"`
	DurationSeconds float64                   `json:"duration_seconds"`
	Transcript      []timeline.TranscriptLine `json:"transcript,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// Interaction is the audit record of one listener question.
type Interaction struct {
	ID            uuid.UUID      `json:"id"` // same as the question id
	SessionID     uuid.UUID      `json:"session_id"`
	EpisodeID     *uuid.UUID     `json:"episode_id,omitempty"`
	Query         string         `json:"query"`
	AskedAt       float64        `json:"asked_at"`
	InsertAt      *float64       `json:"insert_at,omitempty"`
	AddedDuration *float64       `json:"added_duration,omitempty"`
	Status        QuestionStatus `json:"status"`
	Details       JSONB          `json:"details,omitempty"` // script, reason, voices
	ErrorMessage  *string        `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SessionEvent is pushed to listeners of a session when its layout changes
// or a question ends without an answer.
type SessionEvent struct {
	Type          EventType  `json:"type"`
	SessionID     uuid.UUID  `json:"session_id"`
	QuestionID    *uuid.UUID `json:"question_id,omitempty"`
	Version       uint64     `json:"version,omitempty"`
	TotalDuration float64    `json:"total_duration,omitempty"`
	InsertAt      *float64   `json:"insert_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	At            time.Time  `json:"at"`
}

// DTOs for API requests/responses

type CreateSessionRequest struct {
	EpisodeID       *uuid.UUID                `json:"episode_id,omitempty"`
	AudioURL        string                    `json:"audio_url,omitempty"`
	DurationSeconds *float64                  `json:"duration_seconds,omitempty"`
	Transcript      []timeline.TranscriptLine `json:"transcript,omitempty"`
}

type AskQuestionRequest struct {
	Query       string  `json:"query"`
	CurrentTime float64 `json:"current_time"`
}

type AskQuestionResponse struct {
	QuestionID uuid.UUID      `json:"question_id"`
	Status     QuestionStatus `json:"status"`
}

type ListEpisodesResponse struct {
	Episodes []Episode `json:"episodes"`
}

type ListInteractionsResponse struct {
	Interactions []Interaction `json:"interactions"`
}
