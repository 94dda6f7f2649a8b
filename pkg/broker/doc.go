// Package broker provides the shared store-access helpers the rest of the
// module is built on: list queues, hash records, the score-ordered schedule
// index, and lock-key primitives, all backed by Redis.
//
// Two implementations share one operation surface:
//
//   - Broker wraps a go-redis client for production use.
//   - Memory keeps everything in process memory for tests and local
//     development.
//
// Consuming packages (pkg/consumer, pkg/reminder, pkg/lock, pkg/task) each
// declare the narrow interface they need; both implementations satisfy all of
// them.
//
// # Atomicity
//
// Operations that must touch a reminder record and the schedule index
// together (HashSetZAdd, HashSetZRem) run as a single MULTI/EXEC transaction
// so a failure can never leave one write applied without the other.
// CompareAndDelete runs as a Lua script for the same reason: the lock release
// check must not race with lock expiry.
//
// # Errors
//
// Transport failures are wrapped in ErrStoreUnavailable. PopBlocking reports
// an idle timeout as ErrNoTask, which callers treat as a normal loop
// iteration, not a failure.
package broker
