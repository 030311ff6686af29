// Package backup moves the encrypted room log to and from a revisioned
// off-site blob store. The engine applies the durability policy: backups
// are eventual, conflicts are retried once, and no backup failure ever
// propagates to the client action that triggered it.
package backup

import (
	"context"
	"errors"
)

var (
	// ErrNotExist is returned by Fetch when no backup has been written yet.
	// A fresh room hits this on first run; it is a normal outcome, not a
	// failure.
	ErrNotExist = errors.New("backup does not exist")

	// ErrRevisionConflict is returned by Put when the stored revision no
	// longer matches the one the caller last observed, meaning another
	// writer got there first.
	ErrRevisionConflict = errors.New("backup revision conflict")
)

// Blob is one revision of the remote backup object. Revision is an opaque
// token; callers only ever hand it back to Put unmodified.
type Blob struct {
	Data     []byte
	Revision string
}

// RemoteStore is a revisioned blob store holding the encrypted log.
type RemoteStore interface {
	// Fetch returns the current blob, or ErrNotExist.
	Fetch(ctx context.Context) (*Blob, error)

	// Put replaces the blob only if expectedRev still matches the stored
	// revision; an empty expectedRev means the object must not exist yet.
	// Returns the new revision, or ErrRevisionConflict.
	Put(ctx context.Context, data []byte, expectedRev string) (string, error)
}
