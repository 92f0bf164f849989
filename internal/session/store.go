package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load and Delete when no document exists
// for the given id.
var ErrNotFound = errors.New("session not found")

// Store persists session documents. A Save is transactional at the
// document level: it either fully succeeds or fails; partial writes are
// not a supported outcome. Implementations must support concurrent
// reads across different ids.
type Store interface {
	// Save writes the full session document.
	Save(ctx context.Context, s *Session) error

	// Load returns the session for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)

	// Exists reports whether a document exists for id.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns all stored session ids, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes the session for id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
