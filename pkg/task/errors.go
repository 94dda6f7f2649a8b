package task

import "errors"

var (
	// ErrEnvelopeNil is returned when a nil envelope is provided.
	ErrEnvelopeNil = errors.New("task envelope cannot be nil")

	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("queue store cannot be nil")

	// ErrMissingQueue is returned when no queue name is given.
	ErrMissingQueue = errors.New("queue name cannot be empty")

	// ErrMissingRecipient is returned when an envelope lacks a recipient.
	ErrMissingRecipient = errors.New("task envelope requires a non-empty recipient")

	// ErrMissingPayload is returned when an envelope lacks a payload.
	ErrMissingPayload = errors.New("task envelope requires a payload")

	// ErrInvalidEnvelope is returned when queue text cannot be parsed into a
	// valid envelope.
	ErrInvalidEnvelope = errors.New("invalid task envelope")
)
