package consumer

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("queue store cannot be nil")

	// ErrQueueEmpty is returned when no queue name is given.
	ErrQueueEmpty = errors.New("queue name cannot be empty")

	// ErrProcessorNil is returned when a nil processor is provided.
	ErrProcessorNil = errors.New("processor cannot be nil")

	// ErrDecodeFailure marks a queue item that was not valid UTF-8 text.
	ErrDecodeFailure = errors.New("task data is not valid UTF-8")

	// ErrPermanent classifies a failure that retrying cannot fix: bad task
	// format, bad recipient, platform-rejected payload, auth failure. Tasks
	// failing permanently are dead-lettered and considered handled.
	ErrPermanent = errors.New("permanent task failure")

	// ErrTransient classifies a failure that might succeed later: network
	// errors, rate limiting, server errors. The engine pauses briefly; the
	// item itself is not requeued.
	ErrTransient = errors.New("transient task failure")
)

// Permanent wraps err so the engine classifies it as a permanent failure.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Transient wraps err so the engine classifies it as a transient failure.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
