package redisconn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nudgekit/pkg/config"
	"github.com/dmitrymomot/nudgekit/pkg/redisconn"
)

func TestConnect_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := redisconn.Connect(context.Background(), redisconn.Config{
		URL:            "not-a-redis-url",
		ConnectTimeout: time.Second,
	})
	assert.ErrorIs(t, err, redisconn.ErrInvalidURL)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	// A reserved port nothing listens on; the bounded retry loop must give
	// up within the configured timeout.
	_, err := redisconn.Connect(context.Background(), redisconn.Config{
		URL:             "redis://127.0.0.1:1/0",
		ConnectAttempts: 2,
		RetryInterval:   10 * time.Millisecond,
		ConnectTimeout:  500 * time.Millisecond,
	})
	assert.ErrorIs(t, err, redisconn.ErrNotReady)
}

func TestConfig_Defaults(t *testing.T) {
	var cfg redisconn.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "redis://localhost:6379/0", cfg.URL)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
}
