// Package room implements the heart of the relay: the canonical message
// log and everything that watches it. The Store serializes concurrent
// mutations and owns persistence, the Registry tracks who is connected,
// and the Hub delivers committed events in order.
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/common"
	"github.com/kotobachat/kotoba/internal/logging"
	"github.com/kotobachat/kotoba/internal/logstore"
	"github.com/kotobachat/kotoba/internal/protocol"
)

// DefaultLimit is the number of messages retained when no limit is
// configured.
const DefaultLimit = 100

// Backup receives consistent log snapshots for off-site durability. The
// room never waits on it beyond handing over a snapshot.
type Backup interface {
	// Restore returns the last backed-up log, or nil when there is none
	// worth trusting.
	Restore(ctx context.Context) []chat.Message
	// Schedule queues a snapshot for an eventual background backup.
	Schedule(snapshot []chat.Message)
	// SyncNow runs a backup cycle for the snapshot immediately.
	SyncNow(ctx context.Context, snapshot []chat.Message) error
}

// Store owns the in-memory room log. Mutations are serialized end to end:
// the mutex is held across the local persistence write and the broadcast
// enqueue, so two overlapping sends can never both read the pre-update log
// and drop one another's message, and every session observes events in
// commit order.
type Store struct {
	local       logstore.Store
	backup      Backup // nil when off-site backup is disabled
	hub         *Hub
	logger      logging.Logger
	limit       int
	adminSecret string

	mu  sync.Mutex
	log []chat.Message
}

func NewStore(local logstore.Store, backup Backup, hub *Hub, logger logging.Logger, limit int, adminSecret string) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		local:       local,
		backup:      backup,
		hub:         hub,
		logger:      logger.With("module", "store"),
		limit:       limit,
		adminSecret: adminSecret,
	}
}

// Hydrate loads the log at startup. The local store is authoritative; the
// remote backup is consulted only when no local copy exists, and whatever
// it yields is persisted locally so the next start never depends on the
// network. A missing or corrupt backup leaves the room empty.
func (s *Store) Hydrate(ctx context.Context) error {
	log, err := s.local.Load(ctx)
	switch {
	case err == nil:
		s.mu.Lock()
		s.log = capLog(log, s.limit)
		s.mu.Unlock()
		s.logger.Info(ctx, "hydrated from local store", "messages", len(log))
		return nil
	case !errors.Is(err, logstore.ErrNotExist):
		return fmt.Errorf("load local log: %w", err)
	}

	if s.backup == nil {
		return nil
	}

	restored := capLog(s.backup.Restore(ctx), s.limit)
	if len(restored) == 0 {
		return nil
	}
	if err := s.local.Save(ctx, restored); err != nil {
		return fmt.Errorf("persist restored log: %w", err)
	}

	s.mu.Lock()
	s.log = restored
	s.mu.Unlock()
	return nil
}

// Append validates and commits a new message authored by from. The
// returned message carries the server-assigned ID and timestamp. Local
// persistence happens before the commit becomes observable; if it fails,
// the in-memory log is untouched and the error is surfaced.
func (s *Store) Append(ctx context.Context, from chat.Identity, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, fmt.Errorf("%w: empty message text", common.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := chat.Message{
		ID:        uuid.NewString(),
		Name:      from.Name,
		Color:     from.Color,
		Avatar:    from.Avatar,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	next := make([]chat.Message, 0, len(s.log)+1)
	next = append(next, s.log...)
	next = append(next, msg)
	next = capLog(next, s.limit)

	if err := s.local.Save(ctx, next); err != nil {
		return chat.Message{}, fmt.Errorf("persist log: %w", err)
	}
	s.log = next

	s.scheduleBackupLocked()
	s.publish(protocol.NewMessageAdded(msg))
	return msg, nil
}

// Delete removes the message with the given id if from passes the
// ownership check.
func (s *Store) Delete(ctx context.Context, id string, from chat.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.log {
		if s.log[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: message %s", common.ErrNotFound, id)
	}
	if !from.Owns(s.log[idx]) {
		return fmt.Errorf("%w: message %s", common.ErrNotOwner, id)
	}

	next := make([]chat.Message, 0, len(s.log)-1)
	next = append(next, s.log[:idx]...)
	next = append(next, s.log[idx+1:]...)

	if err := s.local.Save(ctx, next); err != nil {
		return fmt.Errorf("persist log: %w", err)
	}
	s.log = next

	s.scheduleBackupLocked()
	s.publish(protocol.NewMessageRemoved(id))
	return nil
}

// Clear empties the log. It requires the admin secret and, unlike the
// other mutations, triggers an immediate backup cycle: with nothing
// pending, this is the cheapest point to make the remote store consistent.
// The backup still runs off the caller's critical path.
func (s *Store) Clear(ctx context.Context, credential string) error {
	if s.adminSecret == "" || credential != s.adminSecret {
		return fmt.Errorf("%w: bad admin credential", common.ErrUnauthorized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	empty := []chat.Message{}
	if err := s.local.Save(ctx, empty); err != nil {
		return fmt.Errorf("persist log: %w", err)
	}
	s.log = nil

	if s.backup != nil {
		go func() {
			if err := s.backup.SyncNow(context.WithoutCancel(ctx), empty); err != nil {
				s.logger.Warn(ctx, "post-clear backup failed", "error", err)
			}
		}()
	}

	s.publish(protocol.NewCleared())
	return nil
}

// Snapshot returns a copy of the current log, oldest first. It holds the
// mutex only long enough to copy and never waits on persistence or backup.
func (s *Store) Snapshot() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe attaches a new hub session whose first event is the current
// log. Attachment happens under the store mutex, so the session sees every
// event committed after its snapshot and nothing committed before it.
func (s *Store) Subscribe() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub.Attach(s.snapshotLocked())
}

// Unsubscribe detaches a session obtained from Subscribe.
func (s *Store) Unsubscribe(sess *Session) {
	s.hub.Detach(sess)
}

// FlushBackup schedules a backup of the current log outside any mutation.
// The registry calls this when the last session leaves.
func (s *Store) FlushBackup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleBackupLocked()
}

func (s *Store) snapshotLocked() []chat.Message {
	out := make([]chat.Message, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Store) scheduleBackupLocked() {
	if s.backup == nil {
		return
	}
	s.backup.Schedule(s.snapshotLocked())
}

func (s *Store) publish(ev protocol.ServerEvent) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}

// capLog evicts from the head until the log fits the limit. Eviction is
// purely by arrival order.
func capLog(log []chat.Message, limit int) []chat.Message {
	if over := len(log) - limit; over > 0 {
		return log[over:]
	}
	return log
}
