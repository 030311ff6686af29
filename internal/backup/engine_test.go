package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/common"
	"github.com/kotobachat/kotoba/internal/cryptox"
	"github.com/kotobachat/kotoba/internal/logging"
)

// fakeRemote is an in-memory RemoteStore with compare-and-swap semantics.
type fakeRemote struct {
	mu      sync.Mutex
	data    []byte
	rev     int
	puts    int
	fetches int
	wrote   chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{wrote: make(chan struct{}, 16)}
}

func (f *fakeRemote) Fetch(ctx context.Context) (*Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.rev == 0 {
		return nil, ErrNotExist
	}
	return &Blob{Data: append([]byte(nil), f.data...), Revision: f.revision()}, nil
}

func (f *fakeRemote) Put(ctx context.Context, data []byte, expectedRev string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if expectedRev != f.revision() && !(expectedRev == "" && f.rev == 0) {
		return "", ErrRevisionConflict
	}
	f.data = append([]byte(nil), data...)
	f.rev++
	select {
	case f.wrote <- struct{}{}:
	default:
	}
	return f.revision(), nil
}

// externalWrite simulates a concurrent writer bumping the revision.
func (f *fakeRemote) externalWrite(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append([]byte(nil), data...)
	f.rev++
}

func (f *fakeRemote) revision() string {
	if f.rev == 0 {
		return ""
	}
	return fmt.Sprintf("rev-%d", f.rev)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func testCodec(t *testing.T) *cryptox.Codec {
	t.Helper()
	c, err := cryptox.NewCodec([]byte("secret"), []byte("salt"))
	require.NoError(t, err)
	return c
}

func testMessages(ids ...string) []chat.Message {
	out := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, chat.Message{ID: id, Name: "alice", Color: "#00b900", Text: "msg " + id, CreatedAt: time.Unix(0, 0).UTC()})
	}
	return out
}

func TestEngine_SyncThenRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	log := testMessages("x", "y")

	e1 := NewEngine(remote, testCodec(t), testLogger(), 0)
	require.NoError(t, e1.SyncNow(ctx, log))

	// ciphertext must not contain the plaintext
	plaintext, err := json.Marshal(log)
	require.NoError(t, err)
	assert.NotContains(t, string(remote.data), string(plaintext))

	// a fresh engine (fresh process) restores the same log
	e2 := NewEngine(remote, testCodec(t), testLogger(), 0)
	assert.Equal(t, log, e2.Restore(ctx))
}

func TestEngine_Restore_Absent(t *testing.T) {
	e := NewEngine(newFakeRemote(), testCodec(t), testLogger(), 0)
	assert.Nil(t, e.Restore(context.Background()))
}

func TestEngine_Restore_Tampered(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()

	e := NewEngine(remote, testCodec(t), testLogger(), 0)
	require.NoError(t, e.SyncNow(ctx, testMessages("x")))
	remote.externalWrite([]byte("garbage, not an envelope"))

	e2 := NewEngine(remote, testCodec(t), testLogger(), 0)
	assert.Nil(t, e2.Restore(ctx))
}

func TestEngine_Restore_EmptyLog(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()

	e := NewEngine(remote, testCodec(t), testLogger(), 0)
	require.NoError(t, e.SyncNow(ctx, []chat.Message{}))

	e2 := NewEngine(remote, testCodec(t), testLogger(), 0)
	assert.Empty(t, e2.Restore(ctx))
}

func TestEngine_SyncNow_ConflictRetriesOnce(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()

	e := NewEngine(remote, testCodec(t), testLogger(), 0)
	require.NoError(t, e.SyncNow(ctx, testMessages("a")))

	// Another writer advances the revision behind the engine's back. The
	// next cycle must hit a conflict, refetch, and succeed on the retry.
	remote.externalWrite([]byte("external"))
	require.NoError(t, e.SyncNow(ctx, testMessages("a", "b")))

	e2 := NewEngine(remote, testCodec(t), testLogger(), 0)
	assert.Equal(t, testMessages("a", "b"), e2.Restore(ctx))
}

// conflictingRemote rejects every put, as if an external writer always wins.
type conflictingRemote struct{ fakeRemote }

func (c *conflictingRemote) Put(ctx context.Context, data []byte, expectedRev string) (string, error) {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return "", ErrRevisionConflict
}

func TestEngine_SyncNow_GivesUpAfterOneRetry(t *testing.T) {
	remote := &conflictingRemote{}
	e := NewEngine(remote, testCodec(t), testLogger(), 0)

	err := e.SyncNow(context.Background(), testMessages("a"))
	assert.ErrorIs(t, err, common.ErrBackupFailed)
	assert.Equal(t, 2, remote.puts, "one attempt plus exactly one retry")
}

func TestEngine_ScheduleCoalesces(t *testing.T) {
	e := NewEngine(newFakeRemote(), testCodec(t), testLogger(), 0)

	e.Schedule(testMessages("a"))
	e.Schedule(testMessages("a", "b"))
	e.Schedule(testMessages("a", "b", "c"))

	// only the latest snapshot survives
	got := <-e.pending
	assert.Equal(t, testMessages("a", "b", "c"), got)
	select {
	case <-e.pending:
		t.Fatal("expected pending queue to be empty")
	default:
	}
}

func TestEngine_Run_WritesScheduledSnapshot(t *testing.T) {
	remote := newFakeRemote()
	e := NewEngine(remote, testCodec(t), testLogger(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Schedule(testMessages("a"))
	select {
	case <-remote.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled backup was never written")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestEngine_Run_FlushesPendingOnShutdown(t *testing.T) {
	remote := newFakeRemote()
	// long delay: the snapshot is still pending when we cancel
	e := NewEngine(remote, testCodec(t), testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Schedule(testMessages("a"))
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	assert.NotZero(t, remote.rev, "pending snapshot should be flushed on shutdown")
}
