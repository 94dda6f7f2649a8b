package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Receipt is what a successful platform call hands back: the identifiers
// needed later to address the delivered message in place (follow-up in
// thread, resolution update).
type Receipt struct {
	// MessageID is the platform-assigned delivery identifier, e.g. the
	// Slack message ts.
	MessageID string
	// Data carries any extra platform-specific identifiers.
	Data map[string]string
}

// Deliverer is the opaque platform-sender capability. One implementation
// exists per channel and operation (send new message, update existing
// message); all of them live outside this module.
type Deliverer interface {
	Deliver(ctx context.Context, recipient string, payload json.RawMessage) (*Receipt, error)
}

// Retrier wraps one outbound platform call with a bounded attempt loop and
// the permanent/transient classification of Classify.
type Retrier struct {
	deliverer  Deliverer
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRetrier creates a retry policy around the given sender.
func NewRetrier(d Deliverer, opts ...Option) (*Retrier, error) {
	if d == nil {
		return nil, ErrDelivererNil
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Retrier{
		deliverer:  d,
		maxRetries: options.maxRetries,
		retryDelay: options.retryDelay,
		logger:     options.logger,
	}, nil
}

// Deliver attempts the platform call up to maxRetries+1 times.
//
// Permanent failures abort immediately and are reported wrapped in
// ErrPermanentFailure. Transient failures consume one attempt each and wait
// retryDelay between attempts; the wait observes ctx so a shutdown is never
// blocked by a sleeping retry. Exhausting all attempts yields
// ErrRetriesExhausted wrapping the last failure. A cancellation observed
// mid-loop yields ErrInterrupted.
func (r *Retrier) Deliver(ctx context.Context, recipient string, payload json.RawMessage) (*Receipt, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}

		receipt, err := r.deliverer.Deliver(ctx, recipient, payload)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("delivery succeeded after retry",
					slog.String("recipient", recipient),
					slog.Int("attempt", attempt+1))
			}
			return receipt, nil
		}

		if Classify(err) == ClassPermanent {
			r.logger.Error("permanent delivery failure",
				slog.String("recipient", recipient),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}

		lastErr = err
		r.logger.Warn("transient delivery failure",
			slog.String("recipient", recipient),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", r.maxRetries+1),
			slog.String("error", err.Error()))

		if attempt < r.maxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
			case <-time.After(r.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.maxRetries+1, lastErr)
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, recipient string, payload json.RawMessage) (*Receipt, error)

func (f DelivererFunc) Deliver(ctx context.Context, recipient string, payload json.RawMessage) (*Receipt, error) {
	return f(ctx, recipient, payload)
}

var _ Deliverer = DelivererFunc(nil)

// IsDeliveryFailure reports whether err is a classified delivery failure,
// either permanent or retry-exhausted.
func IsDeliveryFailure(err error) bool {
	return errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrRetriesExhausted)
}
