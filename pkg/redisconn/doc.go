// Package redisconn connects the module to its Redis server.
//
// Redis holds every piece of shared state this module relies on: the work
// queues drained by pkg/consumer, the reminder records and follow-up schedule
// managed by pkg/reminder, and the lock keys used by pkg/lock. Connect wraps
// the go-redis client with retrying, ping-verified startup so a briefly
// unavailable server does not kill the process during boot:
//
//	var cfg redisconn.Config
//	config.MustLoad(&cfg)
//
//	client, err := redisconn.Connect(ctx, cfg)
//	if err != nil {
//		// terminate: nothing works without the store
//	}
//	defer client.Close()
//
// Healthcheck produces a probe function for readiness endpoints.
package redisconn
