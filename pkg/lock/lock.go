package lock

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the minimal key-value capability a Locker needs. Both the Redis
// broker and the in-memory fake satisfy it.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

const keyPrefix = "lock:"

// Locker implements a TTL-bounded mutual exclusion primitive on top of a
// shared store. Acquisition is a single atomic set-if-absent; release deletes
// the key only when it still holds the caller's token, so an expired lock
// reacquired by another holder is never released by the original owner.
type Locker struct {
	store  Store
	logger *slog.Logger
}

// New creates a Locker over the given store.
func New(store Store, opts ...Option) (*Locker, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	l := &Locker{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Option configures a Locker.
type Option func(*Locker)

// WithLogger sets the logger for the locker.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewToken returns a fresh holder token. Every acquisition attempt must use
// its own token; tokens are never reused across holders.
func NewToken() string {
	return uuid.NewString()
}

// Acquire attempts to take the named lock for ttl. It returns true when the
// caller now holds the lock and false when another holder does. A store
// error is reported as a failed acquisition alongside the error.
func (l *Locker) Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	if token == "" {
		return false, ErrEmptyToken
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	ok, err := l.store.SetNX(ctx, keyFor(name), token, ttl)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the named lock if token still holds it. It returns true when
// this call deleted the lock and false when the lock was absent or held by a
// different token. Store errors are logged, not raised: release runs on
// cleanup paths where the lock expiring on its own is an acceptable fallback.
func (l *Locker) Release(ctx context.Context, name, token string) bool {
	if name == "" || token == "" {
		return false
	}

	ok, err := l.store.CompareAndDelete(ctx, keyFor(name), token)
	if err != nil {
		l.logger.Warn("failed to release lock",
			slog.String("lock", name),
			slog.String("error", err.Error()))
		return false
	}
	return ok
}

// keyFor maps a lock name to its store key. Whitespace in names is collapsed
// so human-entered identifiers cannot produce colliding or unreadable keys.
func keyFor(name string) string {
	return keyPrefix + strings.Join(strings.Fields(name), "_")
}
