package delivery

import "errors"

var (
	// ErrDelivererNil is returned when a nil deliverer is provided.
	ErrDelivererNil = errors.New("deliverer cannot be nil")

	// ErrRetrierNil is returned when a nil retrier is provided.
	ErrRetrierNil = errors.New("retrier cannot be nil")

	// ErrPermanentFailure wraps a platform failure classified as
	// unretriable; the request was aborted after a single attempt.
	ErrPermanentFailure = errors.New("permanent delivery failure")

	// ErrRetriesExhausted wraps the last transient failure after all
	// attempts were consumed.
	ErrRetriesExhausted = errors.New("delivery retries exhausted")

	// ErrInterrupted is returned when a shutdown signal cut the retry loop
	// short. The delivery outcome is unknown only in the sense that no
	// further attempts were made.
	ErrInterrupted = errors.New("delivery interrupted by shutdown")
)
