package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nudgekit/pkg/broker"
	"github.com/dmitrymomot/nudgekit/pkg/consumer"
)

const testQueue = "test_queue"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConsumer(t *testing.T, store consumer.Queue, p consumer.Processor, opts ...consumer.Option) *consumer.Consumer {
	t.Helper()

	opts = append([]consumer.Option{
		consumer.WithLogger(quietLogger()),
		consumer.WithPopTimeout(50 * time.Millisecond),
		consumer.WithErrorPause(10 * time.Millisecond),
	}, opts...)

	c, err := consumer.New(store, testQueue, p, opts...)
	require.NoError(t, err)
	return c
}

func popDLQ(t *testing.T, store *broker.Memory) consumer.DLQEntry {
	t.Helper()

	raw, err := store.PopBlocking(context.Background(), "dlq:"+testQueue, time.Second)
	require.NoError(t, err)

	var entry consumer.DLQEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	noop := consumer.ProcessorFunc(func(ctx context.Context, taskData string) error { return nil })

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := consumer.New(nil, testQueue, noop)
		assert.ErrorIs(t, err, consumer.ErrStoreNil)
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()
		_, err := consumer.New(broker.NewMemory(), "", noop)
		assert.ErrorIs(t, err, consumer.ErrQueueEmpty)
	})

	t.Run("nil processor", func(t *testing.T) {
		t.Parallel()
		_, err := consumer.New(broker.NewMemory(), testQueue, nil)
		assert.ErrorIs(t, err, consumer.ErrProcessorNil)
	})

	t.Run("worker name includes queue", func(t *testing.T) {
		t.Parallel()
		c, err := consumer.New(broker.NewMemory(), testQueue, noop)
		require.NoError(t, err)
		assert.Contains(t, c.Name(), testQueue)
	})

	t.Run("distinct workers get distinct names", func(t *testing.T) {
		t.Parallel()
		a, err := consumer.New(broker.NewMemory(), testQueue, noop)
		require.NoError(t, err)
		b, err := consumer.New(broker.NewMemory(), testQueue, noop)
		require.NoError(t, err)
		assert.NotEqual(t, a.Name(), b.Name())
	})
}

func TestConsumer_ProcessesTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	received := make(chan string, 2)
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		received <- taskData
		return nil
	}))

	require.NoError(t, store.Push(ctx, testQueue, `{"n":1}`))
	require.NoError(t, store.Push(ctx, testQueue, `{"n":2}`))

	c.Start()
	defer c.Stop(time.Second)

	assert.Equal(t, `{"n":1}`, <-received)
	assert.Equal(t, `{"n":2}`, <-received)

	// Handled tasks never reach the DLQ.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.QueueLen("dlq:"+testQueue))
}

func TestConsumer_DecodeFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	var calls atomic.Int32
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, store.Push(ctx, testQueue, "\xff\xfe broken"))

	c.Start()
	defer c.Stop(time.Second)

	entry := popDLQ(t, store)
	assert.Contains(t, entry.Error, "not valid UTF-8")
	assert.Equal(t, testQueue, entry.Key)
	assert.NotEmpty(t, entry.Consumer)
	assert.Contains(t, entry.Data, "broken")

	// The undecodable item must never be passed to the processor, and must
	// produce exactly one DLQ entry.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.Zero(t, store.QueueLen("dlq:"+testQueue))
}

func TestConsumer_PermanentFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		return consumer.Permanent(errors.New("invalid recipient"))
	}))

	require.NoError(t, store.Push(ctx, testQueue, `{"bad":"task"}`))

	c.Start()
	defer c.Stop(time.Second)

	entry := popDLQ(t, store)
	assert.Contains(t, entry.Error, "invalid recipient")
	assert.Equal(t, `{"bad":"task"}`, entry.Data)
	assert.InDelta(t, float64(time.Now().Unix()), entry.TS, 5)
}

func TestConsumer_TransientFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	var calls atomic.Int32
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		calls.Add(1)
		return consumer.Transient(errors.New("rate limited"))
	}))

	require.NoError(t, store.Push(ctx, testQueue, `{"n":1}`))

	c.Start()
	defer c.Stop(time.Second)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	// Transient failures drop the item without dead-lettering or requeueing.
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
	assert.Zero(t, store.QueueLen("dlq:"+testQueue))
	assert.Zero(t, store.QueueLen(testQueue))
}

func TestConsumer_UnexpectedFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		return errors.New("boom")
	}))

	require.NoError(t, store.Push(ctx, testQueue, `{"n":1}`))

	c.Start()
	defer c.Stop(time.Second)

	entry := popDLQ(t, store)
	assert.Contains(t, entry.Error, "boom")
}

func TestConsumer_PanicRecovery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	received := make(chan string, 1)
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		if taskData == "explode" {
			panic("kaboom")
		}
		received <- taskData
		return nil
	}))

	require.NoError(t, store.Push(ctx, testQueue, "explode"))
	require.NoError(t, store.Push(ctx, testQueue, `{"n":"next"}`))

	c.Start()
	defer c.Stop(time.Second)

	entry := popDLQ(t, store)
	assert.Contains(t, entry.Error, "kaboom")

	// The worker survives the panic and keeps draining.
	assert.Equal(t, `{"n":"next"}`, <-received)
}

func TestConsumer_StoreErrorsDoNotKillWorker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	flaky := &flakyQueue{inner: broker.NewMemory(), failures: 3}
	received := make(chan string, 1)
	c := newConsumer(t, flaky, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		received <- taskData
		return nil
	}), consumer.WithMaxErrorStreak(2), consumer.WithBackoff(5*time.Millisecond, 20*time.Millisecond))

	require.NoError(t, flaky.inner.Push(ctx, testQueue, `{"n":1}`))

	c.Start()
	defer c.Stop(time.Second)

	select {
	case got := <-received:
		assert.Equal(t, `{"n":1}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from store errors")
	}
	assert.Zero(t, flaky.remaining())
}

func TestConsumer_StartStop(t *testing.T) {
	t.Parallel()

	store := broker.NewMemory()
	c := newConsumer(t, store, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error { return nil }))

	t.Run("start is idempotent", func(t *testing.T) {
		c.Start()
		c.Start()
		c.Stop(time.Second)
	})

	t.Run("stop on stopped consumer is a no-op", func(t *testing.T) {
		c.Stop(time.Second)
	})

	t.Run("stop latency bounded by pop timeout", func(t *testing.T) {
		c.Start()
		start := time.Now()
		c.Stop(time.Second)
		// One pop interval (50ms) plus margin.
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("restart after stop", func(t *testing.T) {
		c.Start()
		defer c.Stop(time.Second)
		require.NoError(t, store.Push(context.Background(), testQueue, `{"n":1}`))
		assert.Eventually(t, func() bool {
			return store.QueueLen(testQueue) == 0
		}, time.Second, 10*time.Millisecond)
	})
}

// flakyQueue fails the first N pops with a store error, then delegates.
// ctxCheckedQueue refuses calls on a cancelled context, the way a real
// network client does.
type ctxCheckedQueue struct {
	inner *broker.Memory
}

func (q *ctxCheckedQueue) PopBlocking(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return q.inner.PopBlocking(ctx, queue, timeout)
}

func (q *ctxCheckedQueue) Push(ctx context.Context, queue, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.inner.Push(ctx, queue, payload)
}

func TestConsumer_DeadLetterSurvivesShutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := broker.NewMemory()
	q := &ctxCheckedQueue{inner: store}
	started := make(chan struct{})
	c := newConsumer(t, q, consumer.ProcessorFunc(func(ctx context.Context, taskData string) error {
		close(started)
		<-ctx.Done()
		return consumer.Permanent(errors.New("recipient gone"))
	}))

	require.NoError(t, store.Push(ctx, testQueue, `{"id":"r1"}`))
	c.Start()
	<-started
	c.Stop(2 * time.Second)

	// The task failed while shutdown was in flight; its record must still
	// reach the dead-letter queue.
	entry := popDLQ(t, store)
	assert.Equal(t, `{"id":"r1"}`, entry.Data)
}

type flakyQueue struct {
	inner    *broker.Memory
	failures int32
}

func (f *flakyQueue) PopBlocking(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return "", errors.New("connection refused")
	}
	return f.inner.PopBlocking(ctx, queue, timeout)
}

func (f *flakyQueue) Push(ctx context.Context, queue, payload string) error {
	return f.inner.Push(ctx, queue, payload)
}

func (f *flakyQueue) remaining() int32 {
	n := atomic.LoadInt32(&f.failures)
	if n < 0 {
		return 0
	}
	return n
}
