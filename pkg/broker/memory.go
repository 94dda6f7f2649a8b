package broker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements the same operation surface as Broker entirely in memory.
// It exists for tests and local development so packages built on the broker
// can run without a live Redis. All operations are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	lists  map[string][]string
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	keys   map[string]memoryValue
}

type memoryValue struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		keys:   make(map[string]memoryValue),
	}
}

func (m *Memory) Push(ctx context.Context, queue, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// LPUSH semantics: new items go to the head, PopBlocking takes the tail.
	m.lists[queue] = append([]string{payload}, m.lists[queue]...)
	return nil
}

func (m *Memory) PopBlocking(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if items := m.lists[queue]; len(items) > 0 {
			last := items[len(items)-1]
			m.lists[queue] = items[:len(items)-1]
			m.mu.Unlock()
			return last, nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return "", ErrNoTask
		}
		select {
		case <-ctx.Done():
			return "", ErrNoTask
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// QueueLen reports the number of items currently in a queue. Test helper.
func (m *Memory) QueueLen(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[queue])
}

func (m *Memory) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) HashSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashSetLocked(key, fields)
	return nil
}

func (m *Memory) HashSetField(ctx context.Context, key, field, value string) error {
	return m.HashSet(ctx, key, map[string]string{field: value})
}

func (m *Memory) ZAdd(ctx context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zAddLocked(key, member, score)
	return nil
}

func (m *Memory) ZRem(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zsets[key], member)
	return nil
}

func (m *Memory) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		member string
		score  float64
	}
	var matched []entry
	for member, score := range m.zsets[key] {
		if score >= min && score < max {
			matched = append(matched, entry{member, score})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score < matched[j].score
		}
		return matched[i].member < matched[j].member
	})

	out := make([]string, len(matched))
	for i, e := range matched {
		out[i] = e.member
	}
	return out, nil
}

func (m *Memory) HashSetZAdd(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashSetLocked(hashKey, fields)
	m.zAddLocked(zsetKey, member, score)
	return nil
}

func (m *Memory) HashSetZRem(ctx context.Context, hashKey string, fields map[string]string, zsetKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashSetLocked(hashKey, fields)
	delete(m.zsets[zsetKey], member)
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.keys[key]; ok {
		if existing.expiresAt.IsZero() || existing.expiresAt.After(time.Now()) {
			return false, nil
		}
		// Expired entries behave as absent.
		delete(m.keys, key)
	}

	v := memoryValue{value: value}
	if ttl > 0 {
		v.expiresAt = time.Now().Add(ttl)
	}
	m.keys[key] = v
	return true, nil
}

func (m *Memory) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.keys[key]
	if !ok || existing.value != value {
		return false, nil
	}
	if !existing.expiresAt.IsZero() && !existing.expiresAt.After(time.Now()) {
		delete(m.keys, key)
		return false, nil
	}
	delete(m.keys, key)
	return true, nil
}

func (m *Memory) hashSetLocked(key string, fields map[string]string) {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (m *Memory) zAddLocked(key, member string, score float64) {
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
}
