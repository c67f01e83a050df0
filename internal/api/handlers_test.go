package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/interject/internal/db"
	"github.com/bobarin/interject/internal/models"
	"github.com/bobarin/interject/internal/session"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (f *fakeJobs) EnqueueAnswer(ctx context.Context, queueName string, sessionID, questionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, questionID)
	return nil
}

func (f *fakeJobs) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.jobs)), nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []models.SessionEvent
	ch        chan *models.SessionEvent
}

func (f *fakeBus) Notify(ctx context.Context, e *models.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, *e)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, id uuid.UUID) (<-chan *models.SessionEvent, error) {
	return f.ch, nil
}

type fakeEpisodes struct {
	ep *models.Episode
}

func (f *fakeEpisodes) ListEpisodes(ctx context.Context) ([]models.Episode, error) {
	return []models.Episode{*f.ep}, nil
}

func (f *fakeEpisodes) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	if id != f.ep.ID {
		return nil, db.ErrEpisodeNotFound
	}
	return f.ep, nil
}

type testServer struct {
	router   http.Handler
	sessions *session.Manager
	jobs     *fakeJobs
	bus      *fakeBus
}

func newTestServer(episodes EpisodeStore, cfg RouterConfig) *testServer {
	ts := &testServer{
		sessions: session.NewManager(),
		jobs:     &fakeJobs{},
		bus:      &fakeBus{ch: make(chan *models.SessionEvent, 4)},
	}
	h := NewHandler(ts.sessions, episodes, ts.jobs, ts.bus, "queue:answer:test")
	ts.router = NewRouter(h, cfg)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (ts *testServer) createSession(t *testing.T) session.State {
	t.Helper()
	dur := 100.0
	rec := ts.do(t, http.MethodPost, "/v1/sessions", models.CreateSessionRequest{
		DurationSeconds: &dur,
		AudioURL:        "https://cdn.example/ep.mp3",
		Transcript: []timeline.TranscriptLine{
			{Speaker: "Host", Content: "welcome", Seconds: 0},
			{Speaker: "Guest", Content: "thanks", Seconds: 5},
			{Speaker: "Host", Content: "so", Seconds: 5},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rec.Code, rec.Body.String())
	}
	var st session.State
	decode(t, rec, &st)
	return st
}

func TestHealth(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{BackendAPIKey: "secret"})
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health should be public, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pending_answers":0`) {
		t.Errorf("expected queue depth in %s", rec.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{BackendAPIKey: "secret"})

	rec := ts.do(t, http.MethodGet, "/v1/episodes", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/episodes", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/episodes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer key: status %d, want 200", rec.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{})

	zero := 0.0
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"empty body", map[string]string{}, http.StatusBadRequest},
		{"zero duration", models.CreateSessionRequest{DurationSeconds: &zero}, http.StatusBadRequest},
		{"episode without catalog", map[string]string{"episode_id": uuid.NewString()}, http.StatusBadRequest},
		{"unordered transcript", map[string]interface{}{
			"duration_seconds": 10,
			"transcript":       []map[string]interface{}{{"seconds": 5}, {"seconds": 1}},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPost, "/v1/sessions", tt.body); rec.Code != tt.want {
				t.Errorf("status %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateSessionFromEpisode(t *testing.T) {
	ep := &models.Episode{
		ID:              uuid.New(),
		Title:           "Making of",
		AudioURL:        "https://cdn.example/making-of.mp3",
		DurationSeconds: 1800,
		Transcript:      []timeline.TranscriptLine{{Speaker: "Host", Content: "hi", Seconds: 0}},
	}
	ts := newTestServer(&fakeEpisodes{ep: ep}, RouterConfig{})

	rec := ts.do(t, http.MethodPost, "/v1/sessions", map[string]string{"episode_id": ep.ID.String()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var st session.State
	decode(t, rec, &st)
	if st.TotalDuration != 1800 || len(st.Transcript) != 1 || st.Sources[timeline.MainSourceID].URL != ep.AudioURL {
		t.Errorf("unexpected state %+v", st)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions", map[string]string{"episode_id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown episode: status %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/episodes", nil)
	var list models.ListEpisodesResponse
	decode(t, rec, &list)
	if len(list.Episodes) != 1 || list.Episodes[0].Title != "Making of" {
		t.Errorf("unexpected episodes %+v", list)
	}
}

func TestGetSessionAndTick(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{})
	st := ts.createSession(t)

	rec := ts.do(t, http.MethodGet, "/v1/sessions/"+st.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/sessions/"+st.ID.String()+"/tick?t=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tick: status %d", rec.Code)
	}
	var pos session.Position
	decode(t, rec, &pos)
	if pos.LineIndex != 2 || pos.Segment == nil || math.Abs(pos.Progress-5) > 1e-9 {
		t.Errorf("unexpected position %+v", pos)
	}

	for _, bad := range []string{"abc", "NaN", "Inf", "-Inf", ""} {
		rec := ts.do(t, http.MethodGet, "/v1/sessions/"+st.ID.String()+"/tick?t="+bad, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("t=%q: status %d, want 400", bad, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/v1/sessions/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", rec.Code)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{})
	st := ts.createSession(t)
	base := "/v1/sessions/" + st.ID.String() + "/questions"

	rec := ts.do(t, http.MethodPost, base, models.AskQuestionRequest{Query: "what camera?", CurrentTime: 3})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ask: status %d: %s", rec.Code, rec.Body.String())
	}
	var asked models.AskQuestionResponse
	decode(t, rec, &asked)
	if asked.Status != models.QuestionStatusPending {
		t.Errorf("status = %s, want pending", asked.Status)
	}
	if len(ts.jobs.jobs) != 1 || ts.jobs.jobs[0] != asked.QuestionID {
		t.Errorf("question not enqueued: %+v", ts.jobs.jobs)
	}

	rec = ts.do(t, http.MethodGet, base+"/"+asked.QuestionID.String(), nil)
	var q session.Question
	decode(t, rec, &q)
	if q.Query != "what camera?" || q.AskedAt != 3 {
		t.Errorf("unexpected question %+v", q)
	}

	rec = ts.do(t, http.MethodDelete, base+"/"+asked.QuestionID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	if len(ts.bus.published) != 1 || ts.bus.published[0].Type != models.EventQuestionCancelled {
		t.Errorf("unexpected published events %+v", ts.bus.published)
	}

	rec = ts.do(t, http.MethodDelete, base+"/"+asked.QuestionID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel: status %d, want 409", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, base+"/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown question: status %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, base, models.AskQuestionRequest{Query: " ", CurrentTime: 3}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank query: status %d, want 400", rec.Code)
	}
}

func TestAskQuestionEnqueueFailure(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{})
	ts.jobs.err = errors.New("redis down")
	st := ts.createSession(t)

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+st.ID.String()+"/questions",
		models.AskQuestionRequest{Query: "hello?", CurrentTime: 1})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
}

type fakeHistory struct {
	rows []models.Interaction
}

func (f *fakeHistory) ListSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.Interaction, error) {
	var out []models.Interaction
	for _, in := range f.rows {
		if in.SessionID == sessionID {
			out = append(out, in)
		}
	}
	return out, nil
}

func TestListInteractions(t *testing.T) {
	sid := uuid.New()
	history := &fakeHistory{rows: []models.Interaction{
		{ID: uuid.New(), SessionID: sid, Query: "why?", Status: models.QuestionStatusAnswered},
		{ID: uuid.New(), SessionID: uuid.New(), Query: "other", Status: models.QuestionStatusFailed},
	}}
	h := NewHandler(session.NewManager(), nil, &fakeJobs{}, &fakeBus{}, "q").WithHistory(history)
	router := NewRouter(h, RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sid.String()+"/interactions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res models.ListInteractionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Interactions) != 1 || res.Interactions[0].Query != "why?" {
		t.Errorf("unexpected interactions %+v", res.Interactions)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid/interactions", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}

	// without a database the endpoint answers an empty list
	ts := newTestServer(nil, RouterConfig{})
	rec = ts.do(t, http.MethodGet, "/v1/sessions/"+sid.String()+"/interactions", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"interactions":[]`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRespondFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", timeline.ErrInvalidInsertionPoint), http.StatusBadRequest},
		{session.ErrQuestionClosed, http.StatusConflict},
		{fmt.Errorf("x: %w", session.ErrQuestionCancelled), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respondFromError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestSessionEventsStream(t *testing.T) {
	ts := newTestServer(nil, RouterConfig{BackendAPIKey: "secret"})
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	dur := 60.0
	s, err := ts.sessions.Create(nil, "", dur, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + s.ID.String() + "/events?api_key=secret"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	at := 12.0
	ts.bus.ch <- &models.SessionEvent{
		Type:          models.EventTimelineUpdated,
		SessionID:     s.ID,
		Version:       2,
		TotalDuration: 70,
		InsertAt:      &at,
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.SessionEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Type != models.EventTimelineUpdated || got.TotalDuration != 70 || got.InsertAt == nil || *got.InsertAt != 12 {
		t.Errorf("unexpected event %+v", got)
	}
}
