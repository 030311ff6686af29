package room

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/logging"
	"github.com/kotobachat/kotoba/internal/protocol"
)

// sessionBuffer is the number of undelivered events a session may
// accumulate before the hub gives up on it.
const sessionBuffer = 64

// Session is one attached event consumer. Events arrive on a buffered
// channel in publish order; the channel is closed when the hub detaches
// the session.
type Session struct {
	id     string
	events chan protocol.ServerEvent
}

func (s *Session) ID() string { return s.id }

// Events returns the stream of committed events for this session. The
// first event is always the history snapshot it was attached with.
func (s *Session) Events() <-chan protocol.ServerEvent { return s.events }

// Hub fans out committed events to every attached session. Each session
// sees events in exactly the order they were published; a session that
// cannot keep up is detached rather than allowed to skip or reorder
// events.
type Hub struct {
	logger logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:   logger.With("module", "hub"),
		sessions: make(map[string]*Session),
	}
}

// Attach registers a new session whose first event is the given history
// snapshot. The store calls this under its own mutex so that no committed
// event can fall between the snapshot and the live stream.
func (h *Hub) Attach(snapshot []chat.Message) *Session {
	s := &Session{
		id:     uuid.NewString(),
		events: make(chan protocol.ServerEvent, sessionBuffer),
	}
	s.events <- protocol.NewHistory(snapshot)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
	return s
}

// Detach removes the session and closes its event channel. Safe to call
// for a session the hub already dropped.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		close(s.events)
	}
}

// Publish delivers ev to all attached sessions. Never blocks: a session
// with a full buffer is detached on the spot, because delivering a later
// event after skipping this one would break the ordering contract.
func (h *Hub) Publish(ev protocol.ServerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		select {
		case s.events <- ev:
		default:
			delete(h.sessions, id)
			close(s.events)
			h.logger.Warn(context.Background(), "dropping slow session", "session_id", id)
		}
	}
}

// Len returns the number of attached sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
