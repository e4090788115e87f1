// Package credstore is the durable key-value storage behind the console
// session: access token, refresh token, expiry, cached user profile and the
// stable session identifier. It has no logic beyond get, set and delete.
package credstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("credstore: not found")

// KV is implemented by every driver (memory, sqlite, redis).
type KV interface {
	// Get returns ErrNotFound when key has no value.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a single value.
	Set(ctx context.Context, key, value string) error

	// SetMany stores all values atomically, so readers never observe an
	// access token paired with a stale expiry.
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
