// Package logstore persists the room log on the local machine. The whole
// ordered log is rewritten as one record on every save; there are no
// partial or delta writes.
package logstore

import (
	"context"
	"errors"

	"github.com/kotobachat/kotoba/internal/chat"
)

// ErrNotExist is returned by Load when nothing has been persisted yet.
// Callers fall back to the remote backup in that case.
var ErrNotExist = errors.New("no persisted log")

// Store is the local durable home of the room log. Save must be atomic: a
// reader never observes a half-written log.
type Store interface {
	Load(ctx context.Context) ([]chat.Message, error)
	Save(ctx context.Context, log []chat.Message) error
	Close() error
}
