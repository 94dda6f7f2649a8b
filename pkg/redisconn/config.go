package redisconn

import "time"

// Config describes how to reach the Redis server backing queues, reminder
// state, and locks. Fields are populated from the environment via pkg/config.
type Config struct {
	// URL in the form "redis://:password@localhost:6379/0".
	URL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	// ConnectAttempts is how many times Connect retries before giving up.
	ConnectAttempts int `env:"REDIS_CONNECT_ATTEMPTS" envDefault:"3"`
	// RetryInterval is the pause between connection attempts.
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	// ConnectTimeout bounds the whole connection procedure.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
