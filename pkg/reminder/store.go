package reminder

import (
	"context"
	"errors"
	"log/slog"
)

// statePrefix namespaces reminder records in the shared store.
const statePrefix = "reminder:state:"

// scheduleKey is the score-ordered index of reminder ids by next due time.
const scheduleKey = "reminder:followup_schedule"

// HashStore is the record-persistence capability the Store needs. Both the
// Redis broker and the in-memory fake satisfy it.
type HashStore interface {
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashSetField(ctx context.Context, key, field, value string) error
}

// Store reads and writes Reminder records as flat text hashes.
type Store struct {
	store  HashStore
	logger *slog.Logger
}

// NewStore creates a Store over the given hash capability.
func NewStore(store HashStore, opts ...StoreOption) (*Store, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	s := &Store{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Save validates the record and writes every field as text.
func (s *Store) Save(ctx context.Context, r *Reminder) error {
	if r == nil {
		return ErrReminderNil
	}
	if err := r.Validate(); err != nil {
		return err
	}
	fields, err := r.toHash()
	if err != nil {
		return err
	}
	return s.store.HashSet(ctx, stateKey(r.NotificationID), fields)
}

// Load reads the record for id. An absent key yields ErrNotFound. A present
// but malformed record also yields ErrNotFound for the caller, with the parse
// failure logged; a corrupt record must degrade to "not found", not crash
// the poller.
func (s *Store) Load(ctx context.Context, id string) (*Reminder, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	fields, err := s.store.HashGetAll(ctx, stateKey(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	r, err := fromHash(fields)
	if err != nil {
		s.logger.Error("failed to parse stored reminder record",
			slog.String("reminder_id", id),
			slog.String("error", err.Error()))
		return nil, errors.Join(ErrNotFound, err)
	}
	return r, nil
}

// SetField writes one field of a reminder record. Delivery processors use it
// to record platform identifiers after a successful send.
func (s *Store) SetField(ctx context.Context, reminderID, field, value string) error {
	if reminderID == "" {
		return ErrEmptyID
	}
	return s.store.HashSetField(ctx, stateKey(reminderID), field, value)
}

func stateKey(id string) string {
	return statePrefix + id
}
