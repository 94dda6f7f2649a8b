package lock_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nudgekit/pkg/broker"
	"github.com/dmitrymomot/nudgekit/pkg/lock"
)

func newLocker(t *testing.T) (*lock.Locker, *broker.Memory) {
	t.Helper()
	store := broker.NewMemory()
	l, err := lock.New(store, lock.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return l, store
}

func TestLocker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("nil store rejected", func(t *testing.T) {
		t.Parallel()

		_, err := lock.New(nil)
		assert.ErrorIs(t, err, lock.ErrStoreNil)
	})

	t.Run("acquire and release cycle", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		tokenA := lock.NewToken()
		ok, err := l.Acquire(ctx, "reminder:42", tokenA, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		// Second holder is refused while the lock is held.
		tokenB := lock.NewToken()
		ok, err = l.Acquire(ctx, "reminder:42", tokenB, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		// The non-holder's release is a no-op.
		assert.False(t, l.Release(ctx, "reminder:42", tokenB))

		// The holder's release succeeds and frees the lock.
		assert.True(t, l.Release(ctx, "reminder:42", tokenA))

		ok, err = l.Acquire(ctx, "reminder:42", tokenB, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release of absent lock returns false", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		assert.False(t, l.Release(ctx, "never-held", lock.NewToken()))
	})

	t.Run("double release returns false the second time", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		token := lock.NewToken()
		ok, err := l.Acquire(ctx, "job", token, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		assert.True(t, l.Release(ctx, "job", token))
		assert.False(t, l.Release(ctx, "job", token))
	})

	t.Run("expired lock can be reacquired", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		tokenA := lock.NewToken()
		ok, err := l.Acquire(ctx, "short", tokenA, 20*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(40 * time.Millisecond)

		tokenB := lock.NewToken()
		ok, err = l.Acquire(ctx, "short", tokenB, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		// The original holder cannot release the new holder's lock.
		assert.False(t, l.Release(ctx, "short", tokenA))
		assert.True(t, l.Release(ctx, "short", tokenB))
	})

	t.Run("names with whitespace are sanitized consistently", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		token := lock.NewToken()
		ok, err := l.Acquire(ctx, "daily  standup", token, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		// The collapsed form addresses the same lock.
		ok, err = l.Acquire(ctx, "daily standup", lock.NewToken(), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.True(t, l.Release(ctx, "daily standup", token))
	})

	t.Run("input validation", func(t *testing.T) {
		t.Parallel()
		l, _ := newLocker(t)

		_, err := l.Acquire(ctx, "", "t", time.Minute)
		assert.ErrorIs(t, err, lock.ErrEmptyName)

		_, err = l.Acquire(ctx, "n", "", time.Minute)
		assert.ErrorIs(t, err, lock.ErrEmptyToken)

		_, err = l.Acquire(ctx, "n", "t", 0)
		assert.ErrorIs(t, err, lock.ErrInvalidTTL)

		assert.False(t, l.Release(ctx, "", "t"))
		assert.False(t, l.Release(ctx, "n", ""))
	})

	t.Run("store error on release is swallowed", func(t *testing.T) {
		t.Parallel()

		l, err := lock.New(failingStore{}, lock.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)

		assert.False(t, l.Release(ctx, "n", "t"))

		_, err = l.Acquire(ctx, "n", "t", time.Minute)
		assert.Error(t, err)
	})
}

type failingStore struct{}

func (failingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return false, errors.New("store unavailable")
}
