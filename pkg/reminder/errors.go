package reminder

import "errors"

var (
	// ErrStoreNil is returned when a component is created without a store.
	ErrStoreNil = errors.New("reminder store cannot be nil")

	// ErrSchedulerNil is returned when a poller is created without a scheduler.
	ErrSchedulerNil = errors.New("reminder scheduler cannot be nil")

	// ErrLockerNil is returned when a poller is created without a lock manager.
	ErrLockerNil = errors.New("lock manager cannot be nil")

	// ErrBuilderNil is returned when a poller is created without a follow-up builder.
	ErrBuilderNil = errors.New("follow-up builder cannot be nil")

	// ErrReminderNil is returned when a nil reminder is passed to an operation.
	ErrReminderNil = errors.New("reminder cannot be nil")

	// ErrEmptyID is returned when a reminder id is empty.
	ErrEmptyID = errors.New("reminder id cannot be empty")

	// ErrNotFound is returned when no usable record exists for a reminder id.
	// Malformed stored records are reported the same way, with the parse
	// failure logged.
	ErrNotFound = errors.New("reminder not found")

	// ErrMalformedRecord indicates a stored record that failed to parse or
	// violated an invariant on load.
	ErrMalformedRecord = errors.New("malformed reminder record")

	// ErrMissingField indicates a required identity or content field is empty.
	ErrMissingField = errors.New("missing required reminder field")

	// ErrInvalidTimeout indicates a non-positive escalation interval.
	ErrInvalidTimeout = errors.New("timeout_seconds must be positive")

	// ErrInvalidMaxAttempts indicates a present but non-positive attempt bound.
	ErrInvalidMaxAttempts = errors.New("max_attempts must be positive when set")

	// ErrNegativeAttempts indicates a negative follow-up attempt counter.
	ErrNegativeAttempts = errors.New("followup_attempts cannot be negative")

	// ErrNegativeErrorCount indicates a negative channel error counter.
	ErrNegativeErrorCount = errors.New("error_count cannot be negative")

	// ErrNotActive is returned when an operation requires a reminder that is
	// still eligible for follow-ups.
	ErrNotActive = errors.New("reminder is not active")
)
