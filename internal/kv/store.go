// Package kv is the key-value adapter every other component persists through.
// Values are opaque byte slices; callers own the encoding (JSON for records,
// plain strings for digests).  The production implementation is Redis; an
// in-memory implementation backs tests and local development.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("key not found")
	// ErrConflict is returned by Update when another writer changed the key
	// between the read and the write.
	ErrConflict = errors.New("concurrent modification")
	// ErrUnavailable wraps any transport failure or timeout talking to the
	// backing store.  Callers should treat it as transient.
	ErrUnavailable = errors.New("store unavailable")
)

// UpdateFunc receives the current value of a key and returns the value to
// write back.  Returning an error aborts the update without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the set of operations the portal needs from its backing store.
// A ttl of zero means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes value only when key does not exist yet and reports
	// whether the write happened.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Take reads and deletes a key in one step.  It backs every single-use
	// token in the system.
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SAdd(ctx context.Context, set string, members ...string) error
	SMembers(ctx context.Context, set string) ([]string, error)
	// ScanPrefix enumerates keys starting with prefix.  Enumeration is best
	// effort: keys written during the scan may or may not be reported.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	// Update performs a conditional read-modify-write of a single existing
	// key.  It returns ErrNotFound when the key is absent and ErrConflict
	// when a concurrent writer won the race.  The key keeps no TTL.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Ping(ctx context.Context) error
}

// DefaultTimeout bounds every call made through a store when the caller did
// not configure one.
const DefaultTimeout = 3 * time.Second
