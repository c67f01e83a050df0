package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/interject/internal/models"
	"github.com/bobarin/interject/internal/services"
	"github.com/bobarin/interject/internal/storage"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ClipPublisher makes generated audio reachable by the player.
type ClipPublisher interface {
	Publish(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Notifier delivers session events to listeners.
type Notifier interface {
	Notify(ctx context.Context, event *models.SessionEvent) error
}

// InteractionRecorder keeps the history of questions.
type InteractionRecorder interface {
	CreateInteraction(ctx context.Context, in *models.Interaction) error
	FinishInteraction(ctx context.Context, id uuid.UUID, status models.QuestionStatus, insertAt, addedDuration *float64, details models.JSONB, errorMessage *string) error
}

type AnswererConfig struct {
	MinLeadSeconds         float64
	ContextRadius          int
	FallbackDialogue       bool
	MaxConcurrentSynthesis int
	MaxConcurrentUploads   int
	DefaultVoiceID         string
	HostSpeaker            string
	GuestSpeaker           string
}

// Answerer turns a pending question into a committed answer: script, then
// voices, then one atomic splice. Any failure before the splice leaves the
// session layout untouched.
type Answerer struct {
	script    services.ScriptService
	voice     services.VoiceService
	voices    services.VoiceMap
	publisher ClipPublisher
	notifier  Notifier
	recorder  InteractionRecorder
	cfg       AnswererConfig
	uploadSem chan struct{}
}

func NewAnswerer(
	script services.ScriptService,
	voice services.VoiceService,
	voices services.VoiceMap,
	publisher ClipPublisher,
	cfg AnswererConfig,
) *Answerer {
	if cfg.ContextRadius <= 0 {
		cfg.ContextRadius = 10
	}
	if cfg.MaxConcurrentSynthesis <= 0 {
		cfg.MaxConcurrentSynthesis = 3
	}
	if cfg.MaxConcurrentUploads <= 0 {
		cfg.MaxConcurrentUploads = 4
	}
	return &Answerer{
		script:    script,
		voice:     voice,
		voices:    voices,
		publisher: publisher,
		cfg:       cfg,
		uploadSem: make(chan struct{}, cfg.MaxConcurrentUploads),
	}
}

// WithNotifier sets where session events go. Optional.
func (a *Answerer) WithNotifier(n Notifier) *Answerer {
	a.notifier = n
	return a
}

// WithRecorder sets the interaction history store. Optional.
func (a *Answerer) WithRecorder(r InteractionRecorder) *Answerer {
	a.recorder = r
	return a
}

// Answer runs the whole pipeline for one question. A question cancelled at
// any point returns ErrQuestionCancelled and changes nothing.
func (a *Answerer) Answer(ctx context.Context, s *Session, questionID uuid.UUID) error {
	q, err := s.Question(questionID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.bindCancel(questionID, cancel) {
		log.Printf("[Answer] Question %s is %s, skipping", questionID, q.Status)
		return ErrQuestionCancelled
	}

	a.record(ctx, s, q)
	start := time.Now()

	commit, dialogue, err := a.answer(ctx, s, q)
	if err != nil {
		if errors.Is(err, ErrQuestionCancelled) || s.cancelled(questionID) {
			s.logf(questionID, "discarded: %v", err)
			log.Printf("[Answer] Question %s cancelled, result discarded", questionID)
			a.finish(s, questionID, models.QuestionStatusCancelled, nil, nil, nil)
			return ErrQuestionCancelled
		}
		if s.FailQuestion(questionID, err) {
			s.logf(questionID, "failed: %v", err)
			log.Printf("[Answer] Question %s failed: %v", questionID, err)
			a.notify(s, &models.SessionEvent{
				Type:       models.EventQuestionFailed,
				SessionID:  s.ID,
				QuestionID: &questionID,
				Error:      err.Error(),
			})
			a.finish(s, questionID, models.QuestionStatusFailed, nil, nil, err)
		}
		return err
	}

	s.logf(questionID, "committed %.2fs at %.2fs (version %d) in %v", commit.AddedDuration, commit.InsertAt, commit.Version, time.Since(start).Round(time.Millisecond))
	log.Printf("[Answer] Question %s answered: +%.2fs at %.2fs, total %.2fs", questionID, commit.AddedDuration, commit.InsertAt, commit.TotalDuration)

	insertAt := commit.InsertAt
	a.notify(s, &models.SessionEvent{
		Type:          models.EventTimelineUpdated,
		SessionID:     s.ID,
		QuestionID:    &questionID,
		Version:       commit.Version,
		TotalDuration: commit.TotalDuration,
		InsertAt:      &insertAt,
	})
	a.finish(s, questionID, models.QuestionStatusAnswered, commit, dialogue, nil)
	return nil
}

func (a *Answerer) answer(ctx context.Context, s *Session, q *Question) (*Commit, []services.DialogueLine, error) {
	window := s.ContextWindow(q.AskedAt, a.cfg.ContextRadius)
	req := services.ScriptRequest{
		Query:          q.Query,
		CurrentTime:    q.AskedAt,
		ContextLines:   window.ContextLines(),
		CurrentIndex:   window.Current,
		MinLeadSeconds: a.cfg.MinLeadSeconds,
		HostSpeaker:    a.cfg.HostSpeaker,
		GuestSpeaker:   a.cfg.GuestSpeaker,
	}
	s.logf(q.ID, "context: %d lines, current index %d, version %d", len(req.ContextLines), req.CurrentIndex, window.Version)

	script, err := a.script.GenerateScript(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if !a.cfg.FallbackDialogue {
			return nil, nil, err
		}
		s.logf(q.ID, "script failed, using fallback: %v", err)
		log.Printf("[Answer] Script failed for %s, using fallback dialogue: %v", q.ID, err)
		script = services.FallbackScript(req)
	}

	at := window.InsertionTime(script.InsertAfterIndex)
	s.logf(q.ID, "script: %d lines, insert after %d -> %.2fs (%s)", len(script.Lines), script.InsertAfterIndex, at, script.Reason)

	clips, err := a.synthesize(ctx, s, q.ID, script.Lines)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]timeline.TranscriptLine, len(script.Lines))
	var offset float64
	for i, l := range script.Lines {
		lines[i] = timeline.TranscriptLine{
			Speaker: l.Speaker,
			Content: l.Text,
			Seconds: offset,
			Kind:    timeline.KindGenerated,
		}
		offset += clips[i].Clip.Duration
	}

	commit, err := s.CommitAnswer(q.ID, window.Version, at, clips, lines, script.Lines)
	if err != nil {
		return nil, nil, err
	}
	return commit, script.Lines, nil
}

// synthesize renders and publishes every line in parallel. The first error
// cancels the rest and no clip is returned.
func (a *Answerer) synthesize(ctx context.Context, s *Session, questionID uuid.UUID, lines []services.DialogueLine) ([]AnswerClip, error) {
	clips := make([]AnswerClip, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrentSynthesis)

	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			voiceID := a.voices.Resolve(line.Speaker, a.cfg.DefaultVoiceID)
			if voiceID == "" {
				return fmt.Errorf("%w: no voice configured for speaker %q", services.ErrSynthesisFailed, line.Speaker)
			}

			clip, err := a.voice.Synthesize(gctx, voiceID, line.Text)
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", i, line.Speaker, err)
			}
			if clip.DurationSeconds <= 0 {
				return fmt.Errorf("%w: line %d has no duration", services.ErrSynthesisFailed, i)
			}

			sourceID := uuid.NewString()
			name := storage.ClipPath(s.ID.String(), sourceID, clip.Format)
			var url string
			if err := a.uploadWithLimit(gctx, name, func() error {
				var err error
				url, err = a.publisher.Publish(gctx, name, clip.Audio, clip.ContentType)
				return err
			}); err != nil {
				return fmt.Errorf("failed to publish line %d: %w", i, err)
			}

			s.logf(questionID, "line %d: %s, %.2fs", i, line.Speaker, clip.DurationSeconds)
			clips[i] = AnswerClip{
				Clip: timeline.Clip{SourceID: sourceID, Duration: clip.DurationSeconds},
				URL:  url,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// uploadWithLimit bounds concurrent uploads across all questions.
func (a *Answerer) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case a.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload of %s cancelled while waiting for slot: %w", label, ctx.Err())
	}
	defer func() { <-a.uploadSem }()
	return fn()
}

func (a *Answerer) notify(s *Session, event *models.SessionEvent) {
	if a.notifier == nil {
		return
	}
	event.At = time.Now()
	// the question context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.notifier.Notify(ctx, event); err != nil {
		log.Printf("[Answer] Failed to publish %s for session %s: %v", event.Type, s.ID, err)
	}
}

func (a *Answerer) record(ctx context.Context, s *Session, q *Question) {
	if a.recorder == nil {
		return
	}
	in := &models.Interaction{
		ID:        q.ID,
		SessionID: s.ID,
		EpisodeID: s.EpisodeID,
		Query:     q.Query,
		AskedAt:   q.AskedAt,
		Status:    models.QuestionStatusPending,
	}
	if err := a.recorder.CreateInteraction(ctx, in); err != nil {
		log.Printf("[Answer] Failed to record question %s: %v", q.ID, err)
	}
}

func (a *Answerer) finish(s *Session, id uuid.UUID, status models.QuestionStatus, commit *Commit, dialogue []services.DialogueLine, cause error) {
	if a.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var insertAt, added *float64
	var details models.JSONB
	if commit != nil {
		at, d := commit.InsertAt, commit.AddedDuration
		insertAt, added = &at, &d
		lines := make([]interface{}, len(dialogue))
		for i, l := range dialogue {
			lines[i] = map[string]interface{}{"speaker": l.Speaker, "text": l.Text}
		}
		details = models.JSONB{"lines": lines, "version": commit.Version}
	}
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}

	if err := a.recorder.FinishInteraction(ctx, id, status, insertAt, added, details, errMsg); err != nil {
		log.Printf("[Answer] Failed to update interaction %s: %v", id, err)
	}
}
