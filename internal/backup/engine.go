package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/common"
	"github.com/kotobachat/kotoba/internal/cryptox"
	"github.com/kotobachat/kotoba/internal/logging"
)

const (
	// shutdownFlushTimeout bounds the final backup attempt when the
	// process is stopping. An abandoned write is safe: the conditional put
	// cannot corrupt the remote object.
	shutdownFlushTimeout = 5 * time.Second

	conflictRetryDelay = 100 * time.Millisecond
)

// Engine drives the off-site backup cycle: serialize the snapshot, encrypt
// it, and write it with a conditional put. It remembers the last revision
// it read or wrote; a conflicting external write is resolved by refetching
// the revision and retrying exactly once.
type Engine struct {
	remote RemoteStore
	codec  *cryptox.Codec
	logger logging.Logger
	delay  time.Duration

	// mu serializes backup cycles and guards rev.
	mu  sync.Mutex
	rev string

	// pending holds at most the latest scheduled snapshot; intermediate
	// states need not reach the remote store.
	pending chan []chat.Message
}

func NewEngine(remote RemoteStore, codec *cryptox.Codec, logger logging.Logger, delay time.Duration) *Engine {
	return &Engine{
		remote:  remote,
		codec:   codec,
		logger:  logger.With("module", "backup"),
		delay:   delay,
		pending: make(chan []chat.Message, 1),
	}
}

// Restore loads the most recent backup. An absent, corrupt, or forged
// backup yields a nil log: the service always fails open to an empty room
// rather than refuse to start.
func (e *Engine) Restore(ctx context.Context) []chat.Message {
	blob, err := e.remote.Fetch(ctx)
	if errors.Is(err, ErrNotExist) {
		e.logger.Info(ctx, "no remote backup found")
		return nil
	}
	if err != nil {
		e.logger.Warn(ctx, "remote backup unreachable, starting empty", "error", err)
		return nil
	}

	e.mu.Lock()
	e.rev = blob.Revision
	e.mu.Unlock()

	plaintext, err := e.codec.Decrypt(blob.Data)
	if err != nil {
		e.logger.Warn(ctx, "backup failed integrity check, starting empty", "error", err)
		return nil
	}

	var log []chat.Message
	if err := json.Unmarshal(plaintext, &log); err != nil {
		e.logger.Warn(ctx, "backup is not a valid log, starting empty", "error", err)
		return nil
	}

	e.logger.Info(ctx, "restored log from remote backup", "messages", len(log))
	return log
}

// SyncNow performs one backup cycle for the given snapshot. On a revision
// conflict the current revision is refetched and the put retried once; a
// second conflict or any other failure is logged and reported as
// common.ErrBackupFailed. The caller's local mutation stays committed
// either way.
func (e *Engine) SyncNow(ctx context.Context, snapshot []chat.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	plaintext, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("serialize log: %w", err)
	}
	envelope, err := e.codec.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt log: %w", err)
	}

	backoff := retry.WithMaxRetries(1, retry.NewConstant(conflictRetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		rev, err := e.remote.Put(ctx, envelope, e.rev)
		if err == nil {
			e.rev = rev
			return nil
		}
		if errors.Is(err, ErrRevisionConflict) {
			e.refreshRevision(ctx)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		e.logger.Warn(ctx, "backup cycle failed", "error", err)
		return fmt.Errorf("%w: %v", common.ErrBackupFailed, err)
	}

	e.logger.Debug(ctx, "backup written", "messages", len(snapshot))
	return nil
}

func (e *Engine) refreshRevision(ctx context.Context) {
	blob, err := e.remote.Fetch(ctx)
	switch {
	case errors.Is(err, ErrNotExist):
		e.rev = ""
	case err == nil:
		e.rev = blob.Revision
	default:
		e.logger.Warn(ctx, "revision refresh failed", "error", err)
	}
}

// Schedule queues snapshot for a background backup, replacing any snapshot
// queued earlier. Never blocks.
func (e *Engine) Schedule(snapshot []chat.Message) {
	for {
		select {
		case e.pending <- snapshot:
			return
		default:
		}
		select {
		case <-e.pending:
		default:
		}
	}
}

// Run services scheduled backups until ctx is cancelled. Scheduled work is
// debounced by the configured delay so a burst of mutations produces one
// backup. On shutdown any still-pending snapshot gets one bounded final
// attempt.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.flushPending()
			return
		case snapshot := <-e.pending:
			if e.delay > 0 {
				select {
				case <-ctx.Done():
					e.flushSnapshot(snapshot)
					return
				case <-time.After(e.delay):
				}
				// prefer anything scheduled while we waited
				select {
				case newer := <-e.pending:
					snapshot = newer
				default:
				}
			}
			_ = e.SyncNow(ctx, snapshot)
		}
	}
}

func (e *Engine) flushPending() {
	select {
	case snapshot := <-e.pending:
		e.flushSnapshot(snapshot)
	default:
	}
}

func (e *Engine) flushSnapshot(snapshot []chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	_ = e.SyncNow(ctx, snapshot)
}
