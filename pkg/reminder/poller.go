package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/nudgekit/pkg/lock"
)

// LockManager is the mutual-exclusion capability the poller uses so two
// pollers never double-process the same due reminder. lock.Locker satisfies
// it.
type LockManager interface {
	Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, token string) bool
}

// FollowupBuilder builds and enqueues one follow-up nudge for a due reminder.
// Returning an error leaves the reminder's schedule entry untouched so the
// next poll retries it.
type FollowupBuilder func(ctx context.Context, r *Reminder) error

// Poller periodically scans the schedule index for due reminders and drives
// each one through its follow-up step under the distributed lock. It is a
// thin loop over the scheduler: range-query, lock, build-and-enqueue,
// advance, unlock.
type Poller struct {
	scheduler *Scheduler
	store     *Store
	locker    LockManager
	builder   FollowupBuilder
	logger    *slog.Logger
	now       func() time.Time

	interval time.Duration
	lockTTL  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a poller over the given scheduler, record store, lock
// manager, and follow-up builder.
func NewPoller(scheduler *Scheduler, store *Store, locker LockManager, builder FollowupBuilder, opts ...PollerOption) (*Poller, error) {
	if scheduler == nil {
		return nil, ErrSchedulerNil
	}
	if store == nil {
		return nil, ErrStoreNil
	}
	if locker == nil {
		return nil, ErrLockerNil
	}
	if builder == nil {
		return nil, ErrBuilderNil
	}

	p := &Poller{
		scheduler: scheduler,
		store:     store,
		locker:    locker,
		builder:   builder,
		logger:    slog.Default(),
		now:       time.Now,
		interval:  15 * time.Second,
		lockTTL:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PollerConfig carries poller tuning loadable from the environment via
// pkg/config.
type PollerConfig struct {
	PollInterval time.Duration `env:"REMINDER_POLL_INTERVAL" envDefault:"15s"`
	LockTTL      time.Duration `env:"REMINDER_LOCK_TTL" envDefault:"30s"`
}

// Options converts the config into functional options.
func (c PollerConfig) Options() []PollerOption {
	return []PollerOption{
		WithPollInterval(c.PollInterval),
		WithLockTTL(c.LockTTL),
	}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the time between schedule scans.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLockTTL sets the expiry of the per-reminder processing lock. It must
// comfortably cover one build-and-advance step.
func WithLockTTL(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.lockTTL = d
		}
	}
}

// WithPollerLogger sets the logger for the poller.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPollerClock overrides the time source. Intended for tests.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// Start spawns the polling goroutine. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Debug("start called on running poller")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx, p.done)

	p.logger.Info("reminder poller started", slog.Duration("interval", p.interval))
}

// Stop signals the loop to exit and waits up to timeout for it to finish.
// An overrun is logged, not returned.
func (p *Poller) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.logger.Debug("stop called on stopped poller")
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	select {
	case <-done:
		p.logger.Info("reminder poller stopped")
	case <-time.After(timeout):
		p.logger.Warn("reminder poller did not stop within timeout",
			slog.Duration("timeout", timeout))
	}
}

// Run starts the poller and returns a function suitable for errgroup.
func (p *Poller) Run(ctx context.Context, stopTimeout time.Duration) func() error {
	return func() error {
		p.Start()
		<-ctx.Done()
		p.Stop(stopTimeout)
		return nil
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one schedule scan: every due reminder gets one follow-up
// step. Exported so drivers with their own scheduling (cron, tests) can run
// scans directly.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now()
	due, err := p.scheduler.Due(ctx, now)
	if err != nil {
		p.logger.Error("failed to query due reminders", slog.String("error", err.Error()))
		return
	}

	for _, id := range due {
		if ctx.Err() != nil {
			return
		}
		p.processDue(ctx, id)
	}
}

// processDue runs one follow-up step for a due reminder under the
// distributed lock. A held lock means another poller owns this reminder
// right now; skipping it is correct, the entry stays due.
func (p *Poller) processDue(ctx context.Context, id string) {
	token := lock.NewToken()
	lockName := "reminder:" + id

	ok, err := p.locker.Acquire(ctx, lockName, token, p.lockTTL)
	if err != nil {
		p.logger.Error("failed to acquire reminder lock",
			slog.String("reminder_id", id),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		p.logger.Debug("reminder locked by another poller", slog.String("reminder_id", id))
		return
	}
	defer p.locker.Release(ctx, lockName, token)

	r, err := p.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The schedule entry outlived its record; drop it or it stays
			// due forever.
			p.logger.Warn("dropping schedule entry without a record",
				slog.String("reminder_id", id))
			if err := p.scheduler.Unschedule(ctx, id); err != nil {
				p.logger.Error("failed to drop orphaned schedule entry",
					slog.String("reminder_id", id),
					slog.String("error", err.Error()))
			}
			return
		}
		p.logger.Error("failed to load due reminder",
			slog.String("reminder_id", id),
			slog.String("error", err.Error()))
		return
	}

	if !r.Active() {
		p.logger.Info("dropping schedule entry of inactive reminder",
			slog.String("reminder_id", id),
			slog.String("status", r.GlobalStatus))
		if err := p.scheduler.Unschedule(ctx, id); err != nil {
			p.logger.Error("failed to drop stale schedule entry",
				slog.String("reminder_id", id),
				slog.String("error", err.Error()))
		}
		return
	}

	if err := p.builder(ctx, r); err != nil {
		p.logger.Error("failed to build follow-up, will retry next poll",
			slog.String("reminder_id", id),
			slog.String("error", err.Error()))
		return
	}

	if err := p.scheduler.AdvanceOnFollowup(ctx, id); err != nil {
		p.logger.Error("failed to advance reminder after follow-up",
			slog.String("reminder_id", id),
			slog.String("error", err.Error()))
	}
}
