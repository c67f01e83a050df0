package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bobarin/interject/internal/models"
	"github.com/bobarin/interject/internal/services"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuestionCancelled = errors.New("question cancelled")
	ErrQuestionClosed    = errors.New("question already finished")
	ErrInvalidQuestion   = errors.New("invalid question")
)

// Source is an audio asset referenced by segments of the session.
type Source struct {
	ID       string        `json:"id"`
	Kind     timeline.Kind `json:"kind"`
	URL      string        `json:"url"`
	Duration float64       `json:"duration_seconds"`
}

// Question tracks one listener question from ask to commit.
type Question struct {
	ID            uuid.UUID               `json:"id"`
	Query         string                  `json:"query"`
	AskedAt       float64                 `json:"asked_at"`
	Status        models.QuestionStatus   `json:"status"`
	InsertAt      *float64                `json:"insert_at,omitempty"`
	AddedDuration float64                 `json:"added_duration,omitempty"`
	Lines         []services.DialogueLine `json:"lines,omitempty"`
	Sources       []Source                `json:"sources,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Logs          []string                `json:"logs,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`

	cancel context.CancelFunc
}

func (q *Question) clone() Question {
	c := *q
	c.cancel = nil
	c.Lines = append([]services.DialogueLine(nil), q.Lines...)
	c.Sources = append([]Source(nil), q.Sources...)
	c.Logs = append([]string(nil), q.Logs...)
	if q.InsertAt != nil {
		at := *q.InsertAt
		c.InsertAt = &at
	}
	return c
}

// Position is what a playback UI renders for one tick.
type Position struct {
	Time          float64                  `json:"time"`
	Segment       *timeline.Segment        `json:"segment"`
	LineIndex     int                      `json:"line_index"`
	Line          *timeline.TranscriptLine `json:"line,omitempty"`
	Progress      float64                  `json:"progress"`
	TotalDuration float64                  `json:"total_duration"`
	Version       uint64                   `json:"version"`
}

// State is a consistent copy of the whole session layout.
type State struct {
	ID            uuid.UUID                 `json:"id"`
	EpisodeID     *uuid.UUID                `json:"episode_id,omitempty"`
	Segments      []timeline.Segment        `json:"segments"`
	Transcript    []timeline.TranscriptLine `json:"transcript"`
	Sources       map[string]Source         `json:"sources"`
	TotalDuration float64                   `json:"total_duration"`
	Version       uint64                    `json:"version"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// Commit describes a generated answer that was spliced in.
type Commit struct {
	InsertAt      float64 `json:"insert_at"`
	AddedDuration float64 `json:"added_duration"`
	TotalDuration float64 `json:"total_duration"`
	Version       uint64  `json:"version"`
}

// AnswerClip is a rendered and published line of an answer.
type AnswerClip struct {
	Clip timeline.Clip
	URL  string
}

type splice struct {
	version uint64
	at      float64
	added   float64
}

// Session is one listener's playback of an episode: a segment store, the
// transcript laid out on the same virtual timeline, and the questions asked.
// The session lock makes segments and transcript change together.
type Session struct {
	ID        uuid.UUID
	EpisodeID *uuid.UUID
	CreatedAt time.Time

	mu         sync.RWMutex
	store      *timeline.Store
	transcript []timeline.TranscriptLine
	sources    map[string]Source
	questions  map[uuid.UUID]*Question
	splices    []splice
}

// New creates an empty session. mainURL is where the original recording is
// served from.
func New(episodeID *uuid.UUID, mainURL string) *Session {
	return &Session{
		ID:        uuid.New(),
		EpisodeID: episodeID,
		CreatedAt: time.Now(),
		store:     timeline.NewStore(),
		sources: map[string]Source{
			timeline.MainSourceID: {ID: timeline.MainSourceID, Kind: timeline.KindOriginal, URL: mainURL},
		},
		questions: make(map[uuid.UUID]*Question),
	}
}

// InitializeFromOriginalAudio resets the layout to a single original segment
// of totalDuration seconds and installs the original transcript.
func (s *Session) InitializeFromOriginalAudio(totalDuration float64, transcript []timeline.TranscriptLine) error {
	store, err := timeline.NewOriginalStore(totalDuration)
	if err != nil {
		return err
	}
	lines := make([]timeline.TranscriptLine, len(transcript))
	for i, l := range transcript {
		if l.Kind == "" {
			l.Kind = timeline.KindOriginal
		}
		lines[i] = l
	}
	if err := timeline.ValidateTranscript(lines); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.transcript = lines
	s.splices = nil
	main := s.sources[timeline.MainSourceID]
	main.Duration = totalDuration
	s.sources[timeline.MainSourceID] = main
	return nil
}

// Tick resolves the current virtual time to the active segment and line.
func (s *Session) Tick(t float64) Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.store.Snapshot()
	pos := Position{
		Time:          t,
		LineIndex:     timeline.ActiveLineIndex(s.transcript, t),
		TotalDuration: snap.TotalDuration,
		Version:       snap.Version,
	}
	if seg, ok := timeline.SegmentAt(snap.Segments, t); ok {
		pos.Segment = &seg
	}
	if pos.LineIndex >= 0 {
		line := s.transcript[pos.LineIndex]
		pos.Line = &line
	}
	if snap.TotalDuration > 0 && !math.IsNaN(t) && !math.IsInf(t, 0) {
		pos.Progress = math.Min(100, math.Max(0, t/snap.TotalDuration*100))
	}
	return pos
}

// State returns a copy of the layout.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.store.Snapshot()
	sources := make(map[string]Source, len(s.sources))
	for k, v := range s.sources {
		sources[k] = v
	}
	return State{
		ID:            s.ID,
		EpisodeID:     s.EpisodeID,
		Segments:      snap.Segments,
		Transcript:    append([]timeline.TranscriptLine{}, s.transcript...),
		Sources:       sources,
		TotalDuration: snap.TotalDuration,
		Version:       snap.Version,
		CreatedAt:     s.CreatedAt,
	}
}

// ApplyGeneratedAnswer splices clips back to back starting at at and inserts
// lines into the transcript. Line times are offsets from the start of the
// answer. Nothing changes on error.
func (s *Session) ApplyGeneratedAnswer(at float64, clips []timeline.Clip, lines []timeline.TranscriptLine) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(at, clips, lines)
}

func (s *Session) applyLocked(at float64, clips []timeline.Clip, lines []timeline.TranscriptLine) (*Commit, error) {
	snap := s.store.Snapshot()
	next, start, err := timeline.InsertSequence(snap.Segments, at, clips)
	if err != nil {
		return nil, err
	}

	var added float64
	for _, c := range clips {
		added += c.Duration
	}

	inserted := make([]timeline.TranscriptLine, len(lines))
	for i, l := range lines {
		if l.Seconds < 0 || l.Seconds > added {
			return nil, fmt.Errorf("%w: answer line %d offset %v outside [0, %v]",
				timeline.ErrInvalidInsertionPoint, i, l.Seconds, added)
		}
		l.Seconds += start
		if l.Kind == "" {
			l.Kind = timeline.KindGenerated
		}
		inserted[i] = l
	}
	if err := timeline.ValidateTranscript(inserted); err != nil {
		return nil, err
	}
	transcript := timeline.SpliceTranscript(s.transcript, start, added, inserted)

	if err := s.store.CompareAndReplace(snap.Version, next); err != nil {
		return nil, err
	}
	s.transcript = transcript
	version := snap.Version + 1
	s.splices = append(s.splices, splice{version: version, at: start, added: added})

	return &Commit{
		InsertAt:      start,
		AddedDuration: added,
		TotalDuration: snap.TotalDuration + added,
		Version:       version,
	}, nil
}

// rebaseLocked maps a virtual time computed against an older version onto
// the current layout by replaying the splices committed since.
func (s *Session) rebaseLocked(t float64, since uint64) float64 {
	for _, sp := range s.splices {
		if sp.version > since && sp.at <= t {
			t += sp.added
		}
	}
	return t
}

// Ask registers a pending question asked at virtual time t.
func (s *Session) Ask(query string, t float64) (*Question, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuestion)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return nil, fmt.Errorf("%w: current time %v", ErrInvalidQuestion, t)
	}

	now := time.Now()
	q := &Question{
		ID:        uuid.New(),
		Query:     query,
		AskedAt:   t,
		Status:    models.QuestionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	c := q.clone()
	return &c, nil
}

// Question returns a copy of the question.
func (s *Session) Question(id uuid.UUID) (*Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	c := q.clone()
	return &c, nil
}

// Cancel abandons a pending question. Work already in flight is cancelled
// and its result will be discarded.
func (s *Session) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return ErrQuestionNotFound
	}
	if q.Status != models.QuestionStatusPending {
		return fmt.Errorf("%w: status %s", ErrQuestionClosed, q.Status)
	}
	q.Status = models.QuestionStatusCancelled
	q.UpdatedAt = time.Now()
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	return nil
}

// bindCancel attaches the cancel func of the work answering id. It reports
// false when the question is no longer pending.
func (s *Session) bindCancel(id uuid.UUID, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok || q.Status != models.QuestionStatusPending {
		return false
	}
	q.cancel = cancel
	return true
}

// CommitAnswer applies a rendered answer for a still-pending question. A
// question cancelled in the meantime gets ErrQuestionCancelled and the layout
// is left alone. at was computed against version and is moved past anything
// committed since.
func (s *Session) CommitAnswer(id uuid.UUID, version uint64, at float64, clips []AnswerClip, lines []timeline.TranscriptLine, dialogue []services.DialogueLine) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	switch q.Status {
	case models.QuestionStatusPending:
	case models.QuestionStatusCancelled:
		return nil, ErrQuestionCancelled
	default:
		return nil, fmt.Errorf("%w: status %s", ErrQuestionClosed, q.Status)
	}

	tlClips := make([]timeline.Clip, len(clips))
	for i, c := range clips {
		tlClips[i] = c.Clip
	}

	commit, err := s.applyLocked(s.rebaseLocked(at, version), tlClips, lines)
	if err != nil {
		return nil, err
	}

	srcs := make([]Source, len(clips))
	for i, c := range clips {
		src := Source{ID: c.Clip.SourceID, Kind: timeline.KindGenerated, URL: c.URL, Duration: c.Clip.Duration}
		s.sources[src.ID] = src
		srcs[i] = src
	}

	insertAt := commit.InsertAt
	q.Status = models.QuestionStatusAnswered
	q.InsertAt = &insertAt
	q.AddedDuration = commit.AddedDuration
	q.Lines = append([]services.DialogueLine(nil), dialogue...)
	q.Sources = srcs
	q.cancel = nil
	q.UpdatedAt = time.Now()
	return commit, nil
}

func (s *Session) cancelled(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	return ok && q.Status == models.QuestionStatusCancelled
}

// FailQuestion marks a pending question failed. It reports whether the
// question was still pending.
func (s *Session) FailQuestion(id uuid.UUID, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok || q.Status != models.QuestionStatusPending {
		return false
	}
	q.Status = models.QuestionStatusFailed
	if cause != nil {
		q.Error = cause.Error()
	}
	q.cancel = nil
	q.UpdatedAt = time.Now()
	return true
}

// logf appends a debug line to the question.
func (s *Session) logf(id uuid.UUID, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[id]; ok {
		q.Logs = append(q.Logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05.000"), msg))
	}
}
