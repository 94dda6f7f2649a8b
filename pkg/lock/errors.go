package lock

import "errors"

var (
	// ErrStoreNil is returned when a Locker is created without a store.
	ErrStoreNil = errors.New("lock store cannot be nil")

	// ErrEmptyName is returned when a lock name is empty.
	ErrEmptyName = errors.New("lock name cannot be empty")

	// ErrEmptyToken is returned when a holder token is empty.
	ErrEmptyToken = errors.New("lock token cannot be empty")

	// ErrInvalidTTL is returned when the requested TTL is not positive.
	ErrInvalidTTL = errors.New("lock ttl must be positive")
)
