package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
)

// Session is a live subscriber: one connected client with an open delivery
// channel. It holds no ownership over ledger data, only a read subscription.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan Event
	done     chan struct{}
}

// Hub is the explicit session registry. Per-session delivery preserves
// publish order (one buffered channel per session, filled under the hub
// lock); delivery across sessions is concurrent and unordered. A session
// whose buffer is full misses events and is expected to reconcile through
// transaction history on reconnect.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Session]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		subscriptions: make(map[string]map[*Session]bool),
	}
}

func (h *Hub) NewSession(userID uuid.UUID) *Session {
	return &Session{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan Event, 64),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(session *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	session.Channels[channel] = true

	sessions, exists := h.subscriptions[channel]
	if !exists {
		sessions = make(map[*Session]bool)
		h.subscriptions[channel] = sessions
	}
	sessions[session] = true

	h.log.Debug("Session subscribed", "sessionID", session.ID, "channel", channel)
}

// Unsubscribe is idempotent and safe after the session is already gone.
func (h *Hub) Unsubscribe(session *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	delete(session.Channels, channel)

	if subMap, ok := h.subscriptions[channel]; ok {
		delete(subMap, session)
		if len(subMap) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	h.log.Debug("Session unsubscribed", "sessionID", session.ID, "channel", channel)
}

func (h *Hub) Remove(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range session.Channels {
		if subMap, ok := h.subscriptions[ch]; ok {
			delete(subMap, session)
			if len(subMap) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	session.Channels = make(map[string]bool)
	h.log.Debug("Session removed from all channels", "sessionID", session.ID)
}

// Broadcast delivers an event to every session subscribed to its channel.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event.Channel == "" {
		return
	}
	sessions, ok := h.subscriptions[event.Channel]
	if !ok {
		return
	}
	for s := range sessions {
		select {
		case s.Outbound <- event:
		default:
			h.log.Warn("Dropping event; session buffer full", "sessionID", s.ID, "channel", event.Channel)
		}
	}
}

// ServeHTTP streams a session's events as SSE until the request context or
// the session is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, session *Session) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Session context done", "sessionID", session.ID, "err", ctx.Err())
			return
		case <-session.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-session.Outbound:
			raw, err := json.Marshal(event)
			if err != nil {
				h.log.Warn("Failed to marshal event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\n", event.Kind)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", string(raw))
			flusher.Flush()
		}
	}
}

func (h *Hub) Close(session *Session) {
	close(session.done)
	h.Remove(session)
	close(session.Outbound)
}
