package broker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a key only when it still holds the expected value.
// Running GET and DEL as one script keeps the check-and-delete atomic, which
// prevents releasing a lock that expired and was re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	return redis.call('del', KEYS[1])
else
	return 0
end
`)

// Broker exposes the small set of Redis primitives the rest of the module is
// built on: list queues, hash records, the score-ordered schedule index, and
// lock keys. It is safe for concurrent use by any number of workers; the
// underlying go-redis client pools connections.
type Broker struct {
	client redis.UniversalClient
}

// New wraps an established Redis client. Use redisconn.Connect to obtain one.
func New(client redis.UniversalClient) (*Broker, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	return &Broker{client: client}, nil
}

// Push appends a payload to the head of the named queue list.
func (b *Broker) Push(ctx context.Context, queue, payload string) error {
	if err := b.client.LPush(ctx, queue, payload).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// PopBlocking waits up to timeout for one item from the tail of the queue.
// It returns ErrNoTask when the wait elapses without an item, which is the
// consumer run-loop's normal cancellation point.
//
// The returned string carries the raw queue bytes; it is not guaranteed to be
// valid UTF-8.
func (b *Broker) PopBlocking(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	res, err := b.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoTask
		}
		return "", errors.Join(ErrStoreUnavailable, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return "", ErrNoTask
	}
	return res[1], nil
}

// HashGetAll returns all fields of a hash record. A missing key yields an
// empty map and no error.
func (b *Broker) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return res, nil
}

// HashSet writes all given fields of a hash record in one call.
func (b *Broker) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := b.client.HSet(ctx, key, flatten(fields)...).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// HashSetField writes a single field of a hash record.
func (b *Broker) HashSetField(ctx context.Context, key, field, value string) error {
	if err := b.client.HSet(ctx, key, field, value).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// ZAdd adds or overwrites a member of a score-ordered set.
func (b *Broker) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := b.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// ZRem removes a member from a score-ordered set. Removing an absent member
// is not an error.
func (b *Broker) ZRem(ctx context.Context, key, member string) error {
	if err := b.client.ZRem(ctx, key, member).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// ZRangeByScore returns members whose score lies in the half-open interval
// [min, max), ascending. The exclusive upper bound lets due-time queries use
// "now" directly: an entry scheduled at exactly now is not yet due.
func (b *Broker) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	res, err := b.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: "(" + formatScore(max),
	}).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return res, nil
}

// HashSetZAdd writes hash fields and a schedule-index entry as one MULTI/EXEC
// transaction. Either both writes apply or neither does, so a reminder can
// never exist without its schedule entry (or the reverse).
func (b *Broker) HashSetZAdd(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string, score float64) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, hashKey, flatten(fields)...)
		}
		pipe.ZAdd(ctx, zsetKey, redis.Z{Score: score, Member: member})
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// HashSetZRem writes hash fields and removes a schedule-index entry as one
// MULTI/EXEC transaction.
func (b *Broker) HashSetZRem(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, hashKey, flatten(fields)...)
		}
		pipe.ZRem(ctx, zsetKey, member)
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// SetNX sets a key with a TTL only if the key is currently absent. Returns
// whether the key was set.
func (b *Broker) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return ok, nil
}

// CompareAndDelete removes a key only if it still holds the expected value.
// Returns whether the key was deleted.
func (b *Broker) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	res, err := releaseScript.Run(ctx, b.client, []string{key}, value).Int()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return res == 1, nil
}

func flatten(fields map[string]string) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func formatScore(f float64) string {
	// go-redis accepts textual scores; strconv keeps full float precision.
	return strconv.FormatFloat(f, 'f', -1, 64)
}
