package session

import (
	"context"
	"errors"
)

// ErrStorageUnavailable wraps every I/O failure reported by a [Tier].
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Tier is one persistence layer addressed by string keys.
type Tier interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by tiers that can report writes made by other processes.
// Watch blocks until ctx is done, calling fn with the changed key.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}
