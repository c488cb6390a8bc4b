// Package transport is the delivery boundary between the routing core and
// connected clients: a fan-out hub keyed by identity plus the websocket
// endpoint feeding it.
package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const sessionBuffer = 32

type session struct {
	server string
	ch     chan string
}

// Hub routes outbound chat lines to connected identities. One session per
// identity; a reconnect displaces the previous session.
type Hub struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger:   log.With(slog.String("component", "hub")),
		sessions: map[uuid.UUID]*session{},
	}
}

// Register installs a session for id on the named server and returns the
// delivery channel plus a cancel function. The channel is closed on cancel
// or displacement.
func (h *Hub) Register(id uuid.UUID, server string) (<-chan string, func()) {
	s := &session{server: server, ch: make(chan string, sessionBuffer)}

	h.mu.Lock()
	if old, ok := h.sessions[id]; ok {
		close(old.ch)
	}
	h.sessions[id] = s
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if current, ok := h.sessions[id]; ok && current == s {
			delete(h.sessions, id)
			close(s.ch)
		}
		h.mu.Unlock()
	}
	return s.ch, cancel
}

// Deliver sends line to id's session, if connected. Slow receivers are
// dropped rather than blocking the routing path.
func (h *Hub) Deliver(id uuid.UUID, line string) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case s.ch <- line:
	default:
		h.logger.Warn("delivery dropped, slow receiver", slog.String("identity", id.String()))
	}
}

// Broadcast sends line to every connected session.
func (h *Hub) Broadcast(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.sessions {
		select {
		case s.ch <- line:
		default:
			h.logger.Warn("broadcast dropped, slow receiver", slog.String("identity", id.String()))
		}
	}
}

// Connected returns the identities with a live session.
func (h *Hub) Connected() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ServerOf returns the server name id's session reported on connect.
func (h *Hub) ServerOf(id uuid.UUID) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[id]; ok {
		return s.server, true
	}
	return "", false
}
