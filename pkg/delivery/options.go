package delivery

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Retrier.
type Option func(*retrierOptions)

type retrierOptions struct {
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func defaultOptions() *retrierOptions {
	return &retrierOptions{
		maxRetries: 2,
		retryDelay: 3 * time.Second,
		logger:     slog.Default(),
	}
}

// WithMaxRetries sets how many retries follow the initial attempt
// (maxRetries+1 total attempts).
func WithMaxRetries(n int) Option {
	return func(o *retrierOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *retrierOptions) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithLogger sets the logger for the retrier.
func WithLogger(logger *slog.Logger) Option {
	return func(o *retrierOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Config carries retry tuning loadable from the environment via pkg/config.
type Config struct {
	MaxRetries int           `env:"DELIVERY_MAX_RETRIES" envDefault:"2"`
	RetryDelay time.Duration `env:"DELIVERY_RETRY_DELAY" envDefault:"3s"`
}

// Options converts the config into functional options.
func (c Config) Options() []Option {
	return []Option{
		WithMaxRetries(c.MaxRetries),
		WithRetryDelay(c.RetryDelay),
	}
}
