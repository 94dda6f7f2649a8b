package broker

import "errors"

var (
	// ErrClientNil is returned when a nil Redis client is provided.
	ErrClientNil = errors.New("redis client cannot be nil")

	// ErrNoTask is returned by PopBlocking when the wait elapses without an
	// item. This is the normal idle outcome, not a failure.
	ErrNoTask = errors.New("no task available within the blocking wait")

	// ErrStoreUnavailable wraps transport-level store failures so callers can
	// distinguish them from task-level errors.
	ErrStoreUnavailable = errors.New("store operation failed")
)
