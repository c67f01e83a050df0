package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// origins are already filtered by the CORS layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionEvents handles GET /v1/sessions/{id}/events
// Upgrades to a websocket and streams timeline_updated / question_failed /
// question_cancelled events until the client goes away.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, "Event stream is not configured")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.events.Subscribe(ctx, s.ID)
	if err != nil {
		log.Printf("[Events] Subscribe failed for session %s: %v", s.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to subscribe to session events")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Printf("[Events] Upgrade failed for session %s: %v", s.ID, err)
		return
	}
	defer conn.Close()

	log.Printf("[Events] Listener attached to session %s", s.ID)

	// the client never sends anything we need; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Events] Listener left session %s", s.ID)
			return
		case <-ping.C:
			deadline := time.Now().Add(eventWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := sonic.Marshal(event)
			if err != nil {
				log.Printf("[Events] Failed to encode %s: %v", event.Type, err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[Events] Write to session %s listener failed: %v", s.ID, err)
				return
			}
		}
	}
}
