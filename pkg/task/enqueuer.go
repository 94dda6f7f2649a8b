package task

import (
	"context"
	"fmt"
)

// QueuePusher is the single store capability the enqueuer needs.
type QueuePusher interface {
	Push(ctx context.Context, queue, payload string) error
}

// Enqueuer places task envelopes on named queues. It is the boundary the
// orchestration layer calls into: everything past Enqueue is owned by the
// consumer engine.
type Enqueuer struct {
	store QueuePusher
}

// NewEnqueuer creates an Enqueuer over the given queue-push capability.
func NewEnqueuer(store QueuePusher) (*Enqueuer, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	return &Enqueuer{store: store}, nil
}

// Enqueue validates and serializes the envelope, then pushes it onto the
// named queue.
func (e *Enqueuer) Enqueue(ctx context.Context, queue string, env *Envelope) error {
	if queue == "" {
		return ErrMissingQueue
	}
	payload, err := Marshal(env)
	if err != nil {
		return err
	}
	if err := e.store.Push(ctx, queue, payload); err != nil {
		return fmt.Errorf("failed to enqueue task on %q: %w", queue, err)
	}
	return nil
}

// EnqueueRaw pushes pre-serialized task JSON onto the named queue without
// re-validating it. Intended for re-driving DLQ entries, where the original
// text must be preserved byte for byte.
func (e *Enqueuer) EnqueueRaw(ctx context.Context, queue, taskJSON string) error {
	if queue == "" {
		return ErrMissingQueue
	}
	if taskJSON == "" {
		return ErrMissingPayload
	}
	if err := e.store.Push(ctx, queue, taskJSON); err != nil {
		return fmt.Errorf("failed to enqueue raw task on %q: %w", queue, err)
	}
	return nil
}
