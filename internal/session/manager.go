package session

import (
	"log"
	"sync"

	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
)

// Manager keeps the live sessions of this process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Create starts a session over an original recording of totalDuration seconds.
func (m *Manager) Create(episodeID *uuid.UUID, mainURL string, totalDuration float64, transcript []timeline.TranscriptLine) (*Session, error) {
	s := New(episodeID, mainURL)
	if err := s.InitializeFromOriginalAudio(totalDuration, transcript); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Printf("[Session] Created %s (duration=%.1fs, lines=%d)", s.ID, totalDuration, len(transcript))
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
