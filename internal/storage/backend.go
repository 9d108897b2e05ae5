package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness constraint is violated,
	// e.g. two registrations racing on the same username.
	ErrConflict = errors.New("already exists")
)

// Backend is a small document store. Keys are slash-separated paths; values
// are opaque byte slices (JSON documents in practice). Incr provides the
// monotonic sequences used for id allocation.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}
