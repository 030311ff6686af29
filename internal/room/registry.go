package room

import (
	"context"
	"sort"
	"sync"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/logging"
	"github.com/kotobachat/kotoba/internal/protocol"
)

// Registry tracks connected sessions and the identity each one declared at
// join time. It owns the identity map exclusively; nothing else mutates
// it. Every join and leave announces the new presence list through the
// hub.
type Registry struct {
	hub    *Hub
	logger logging.Logger

	// onEmpty, when set, runs after the last session leaves. The server
	// uses it to flush a backup while the room is quiet.
	onEmpty func()

	mu       sync.Mutex
	sessions map[string]chat.Identity
}

func NewRegistry(hub *Hub, logger logging.Logger) *Registry {
	return &Registry{
		hub:      hub,
		logger:   logger.With("module", "registry"),
		sessions: make(map[string]chat.Identity),
	}
}

// SetOnEmpty installs the hook invoked when the room drains. Must be
// called before any session joins.
func (r *Registry) SetOnEmpty(fn func()) {
	r.onEmpty = fn
}

// Join records the identity for sessionID and broadcasts presence.
func (r *Registry) Join(sessionID string, id chat.Identity) {
	r.mu.Lock()
	r.sessions[sessionID] = id
	list := r.identitiesLocked()
	r.mu.Unlock()

	r.logger.Info(context.Background(), "session joined", "session_id", sessionID, "name", id.Name)
	r.hub.Publish(protocol.NewPresence(list))
}

// Leave forgets sessionID and broadcasts presence. Unknown sessions are
// ignored.
func (r *Registry) Leave(sessionID string) {
	r.mu.Lock()
	_, known := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	empty := len(r.sessions) == 0
	list := r.identitiesLocked()
	r.mu.Unlock()

	if !known {
		return
	}

	r.logger.Info(context.Background(), "session left", "session_id", sessionID)
	r.hub.Publish(protocol.NewPresence(list))

	if empty && r.onEmpty != nil {
		r.onEmpty()
	}
}

// Identity returns the identity sessionID joined with.
func (r *Registry) Identity(sessionID string) (chat.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.sessions[sessionID]
	return id, ok
}

// ActiveIdentities returns the identities of all joined sessions, sorted
// by name for a stable presence list.
func (r *Registry) ActiveIdentities() []chat.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identitiesLocked()
}

func (r *Registry) identitiesLocked() []chat.Identity {
	list := make([]chat.Identity, 0, len(r.sessions))
	for _, id := range r.sessions {
		list = append(list, id)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
