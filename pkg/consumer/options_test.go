package consumer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nudgekit/pkg/config"
	"github.com/dmitrymomot/nudgekit/pkg/consumer"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg consumer.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, 5*time.Second, cfg.PopTimeout)
	assert.Equal(t, time.Second, cfg.ErrorPause)
	assert.Equal(t, 5, cfg.MaxErrorStreak)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.BackoffCap)
	assert.Len(t, cfg.Options(), 4)
}

func TestConfig_Overrides(t *testing.T) {
	t.Setenv("CONSUMER_POP_TIMEOUT", "250ms")
	t.Setenv("CONSUMER_MAX_ERROR_STREAK", "2")

	var cfg consumer.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, 250*time.Millisecond, cfg.PopTimeout)
	assert.Equal(t, 2, cfg.MaxErrorStreak)
}
