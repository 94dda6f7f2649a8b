package consumer

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a consumer.
type Option func(*options)

type options struct {
	name           string
	dlqKey         string
	logger         *slog.Logger
	popTimeout     time.Duration
	errorPause     time.Duration
	maxErrorStreak int
	backoffBase    time.Duration
	backoffCap     time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:         slog.Default(),
		popTimeout:     5 * time.Second,
		errorPause:     time.Second,
		maxErrorStreak: 5,
		backoffBase:    time.Second,
		backoffCap:     30 * time.Second,
	}
}

// WithName overrides the generated worker identity.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithDLQKey overrides the default "dlq:<queue>" dead-letter key.
func WithDLQKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.dlqKey = key
		}
	}
}

// WithLogger sets the logger for the consumer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPopTimeout bounds each blocking wait on the queue. Stop latency is
// bounded by at most one such interval plus in-flight work.
func WithPopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.popTimeout = d
		}
	}
}

// WithErrorPause sets the short pause applied after a transient task failure
// and after store errors below the backoff threshold.
func WithErrorPause(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.errorPause = d
		}
	}
}

// WithMaxErrorStreak sets how many consecutive store errors are tolerated
// before exponential backoff kicks in.
func WithMaxErrorStreak(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxErrorStreak = n
		}
	}
}

// WithBackoff sets the base and cap for the store-error backoff curve:
// min(cap, base * 2^(streak-threshold)).
func WithBackoff(base, cap time.Duration) Option {
	return func(o *options) {
		if base > 0 {
			o.backoffBase = base
		}
		if cap > 0 {
			o.backoffCap = cap
		}
	}
}

// Config carries consumer tuning loadable from the environment via
// pkg/config.
type Config struct {
	PopTimeout     time.Duration `env:"CONSUMER_POP_TIMEOUT" envDefault:"5s"`
	ErrorPause     time.Duration `env:"CONSUMER_ERROR_PAUSE" envDefault:"1s"`
	MaxErrorStreak int           `env:"CONSUMER_MAX_ERROR_STREAK" envDefault:"5"`
	BackoffBase    time.Duration `env:"CONSUMER_BACKOFF_BASE" envDefault:"1s"`
	BackoffCap     time.Duration `env:"CONSUMER_BACKOFF_CAP" envDefault:"30s"`
}

// Options converts the config into functional options.
func (c Config) Options() []Option {
	return []Option{
		WithPopTimeout(c.PopTimeout),
		WithErrorPause(c.ErrorPause),
		WithMaxErrorStreak(c.MaxErrorStreak),
		WithBackoff(c.BackoffBase, c.BackoffCap),
	}
}
