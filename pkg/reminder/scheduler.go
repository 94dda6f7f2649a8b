package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/nudgekit/pkg/task"
)

// SchedulerStore is the combined state-and-index capability the Scheduler
// needs. The paired operations write the hash record and the schedule index
// in one atomic transaction, so a reminder can never be left half-applied:
// existing without a schedule entry, or scheduled without a record.
type SchedulerStore interface {
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashSetZAdd(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string, score float64) error
	HashSetZRem(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string) error
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRem(ctx context.Context, key, member string) error
}

// Updater enqueues the best-effort cosmetic update task on resolution. The
// task enqueuer satisfies it.
type Updater interface {
	Enqueue(ctx context.Context, queue string, env *task.Envelope) error
}

// Resolution carries the optional metadata a resolver supplies to update the
// delivered message in place. Without it, resolution only mutates state.
type Resolution struct {
	// Channel names the platform the acknowledgment arrived on.
	Channel task.Channel
	// Queue is the work queue the cosmetic update task is enqueued on.
	Queue string
	// UpdatePayload is the channel-specific "reflect resolution" message body.
	UpdatePayload json.RawMessage
}

// Scheduler drives the reminder lifecycle: it creates the schedule entry,
// advances it after each follow-up, and tears it down on resolution. Every
// mutation touches the state record and the schedule index in one atomic
// store transaction.
type Scheduler struct {
	store    SchedulerStore
	enqueuer Updater
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a Scheduler over the given store.
func NewScheduler(store SchedulerStore, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	s := &Scheduler{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithUpdater enables the best-effort message update on resolution.
func WithUpdater(u Updater) SchedulerOption {
	return func(s *Scheduler) {
		s.enqueuer = u
	}
}

// WithSchedulerLogger sets the logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// ScheduleInitial persists the reminder with pending status and writes its
// first schedule entry at now + max(0, delay). The state write and the index
// write are one transaction; a failure means neither applied and the caller
// must treat the whole operation as failed.
func (s *Scheduler) ScheduleInitial(ctx context.Context, r *Reminder, delay time.Duration) error {
	if r == nil {
		return ErrReminderNil
	}
	if delay < 0 {
		delay = 0
	}

	now := s.now()
	if r.GlobalStatus == "" {
		r.GlobalStatus = StatusPending
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = Timestamp(now)
	}
	r.LastUpdated = Timestamp(now)
	if err := r.Validate(); err != nil {
		return err
	}

	due := Timestamp(now.Add(delay))
	fields, err := r.toHash()
	if err != nil {
		return err
	}

	if err := s.store.HashSetZAdd(ctx, stateKey(r.NotificationID), fields, scheduleKey, r.NotificationID, due); err != nil {
		return err
	}

	s.logger.Info("reminder scheduled",
		slog.String("reminder_id", r.NotificationID),
		slog.Duration("initial_delay", delay),
		slog.Float64("due", due))
	return nil
}

// AdvanceOnFollowup records that a follow-up was built and enqueued for id:
// it increments the attempt counter, timestamps the record, and overwrites
// the schedule entry with the next due time one escalation interval out.
// Once the attempt bound is reached the reminder transitions to the terminal
// error status and its schedule entry is removed, so an unacknowledged
// reminder that ran out of attempts is observable rather than silently
// parked.
func (s *Scheduler) AdvanceOnFollowup(ctx context.Context, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !r.Active() {
		return ErrNotActive
	}

	now := s.now()
	nowTS := Timestamp(now)
	r.FollowupAttempts++
	r.LastUpdated = nowTS
	for name, ch := range r.Channels {
		if ch.Status == ChannelStatusSent || ch.Status == ChannelStatusFollowupSent {
			ch.Status = ChannelStatusFollowupSent
			ch.LastReminderTime = &nowTS
			r.Channels[name] = ch
		}
	}

	if r.MaxAttempts != nil && r.FollowupAttempts >= *r.MaxAttempts {
		r.GlobalStatus = StatusError
		fields, err := r.toHash()
		if err != nil {
			return err
		}
		if err := s.store.HashSetZRem(ctx, stateKey(id), fields, scheduleKey, id); err != nil {
			return err
		}
		s.logger.Warn("reminder exhausted follow-up attempts",
			slog.String("reminder_id", id),
			slog.Int("attempts", r.FollowupAttempts))
		return nil
	}

	due := Timestamp(now.Add(time.Duration(r.TimeoutSeconds) * time.Second))
	nextDue := due
	for name, ch := range r.Channels {
		if ch.Status == ChannelStatusFollowupSent {
			ch.NextFollowupTime = &nextDue
			r.Channels[name] = ch
		}
	}
	fields, err := r.toHash()
	if err != nil {
		return err
	}
	if err := s.store.HashSetZAdd(ctx, stateKey(id), fields, scheduleKey, id, due); err != nil {
		return err
	}

	s.logger.Info("reminder follow-up recorded",
		slog.String("reminder_id", id),
		slog.Int("attempt", r.FollowupAttempts),
		slog.Float64("next_due", due))
	return nil
}

// Resolve marks the reminder acknowledged and removes it from the schedule
// index in one transaction. It is idempotent: an absent reminder or one
// already out of the active state yields (false, nil). When resolution
// metadata is supplied and an updater is configured, a cosmetic "update the
// delivered message" task is enqueued best-effort; its failure never fails
// the resolution.
func (s *Scheduler) Resolve(ctx context.Context, id string, meta *Resolution) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}

	r, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !r.Active() {
		return false, nil
	}

	nowTS := Timestamp(s.now())
	r.GlobalStatus = StatusResolved
	r.ResolvedAt = &nowTS
	r.LastUpdated = nowTS
	if meta != nil {
		r.ResolvedByChannel = string(meta.Channel)
	}
	for name, ch := range r.Channels {
		if ch.Status != ChannelStatusError {
			ch.Status = ChannelStatusResolved
			r.Channels[name] = ch
		}
	}

	fields, err := r.toHash()
	if err != nil {
		return false, err
	}
	if err := s.store.HashSetZRem(ctx, stateKey(id), fields, scheduleKey, id); err != nil {
		return false, err
	}

	s.logger.Info("reminder resolved",
		slog.String("reminder_id", id),
		slog.String("resolved_by", r.ResolvedByChannel))

	s.enqueueResolutionUpdate(ctx, r, meta)
	return true, nil
}

// Due returns the ids of all reminders whose due time has passed, in due
// order. An entry scheduled at exactly now is not yet due.
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]string, error) {
	return s.store.ZRangeByScore(ctx, scheduleKey, 0, Timestamp(now))
}

// Unschedule drops the schedule entry for id without touching the record.
// The poller uses it to clear entries whose record is gone or no longer
// active, which would otherwise stay due forever.
func (s *Scheduler) Unschedule(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return s.store.ZRem(ctx, scheduleKey, id)
}

func (s *Scheduler) enqueueResolutionUpdate(ctx context.Context, r *Reminder, meta *Resolution) {
	if s.enqueuer == nil || meta == nil || meta.Queue == "" || len(meta.UpdatePayload) == 0 {
		return
	}
	env := &task.Envelope{
		Recipient:  r.Recipient,
		Channel:    meta.Channel,
		ReminderID: r.NotificationID,
		Payload:    meta.UpdatePayload,
	}
	if err := s.enqueuer.Enqueue(ctx, meta.Queue, env); err != nil {
		s.logger.Warn("failed to enqueue resolution update",
			slog.String("reminder_id", r.NotificationID),
			slog.String("queue", meta.Queue),
			slog.String("error", err.Error()))
	}
}

// load reads and parses the record for id. Absent and malformed records both
// yield ErrNotFound, matching the Store's semantics; all scheduler writes go
// through the atomic paired operations instead.
func (s *Scheduler) load(ctx context.Context, id string) (*Reminder, error) {
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
