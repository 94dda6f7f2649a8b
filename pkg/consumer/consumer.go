package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nudgekit/pkg/broker"
)

// Queue is the store surface the engine needs: a blocking pop for the work
// queue and a push for dead-letter entries.
type Queue interface {
	PopBlocking(ctx context.Context, queue string, timeout time.Duration) (string, error)
	Push(ctx context.Context, queue, payload string) error
}

// Processor handles one decoded task. The returned error drives the engine:
//
//   - nil: the task is handled (success or an intentionally discarded
//     failure the processor already recorded).
//   - wraps ErrTransient: the engine pauses briefly and moves on. The item
//     is not requeued.
//   - wraps ErrPermanent: the engine dead-letters the task and moves on.
//   - anything else: the engine dead-letters the task and applies a longer
//     defensive pause against poison-pill storms.
type Processor interface {
	Process(ctx context.Context, taskData string) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, taskData string) error

func (f ProcessorFunc) Process(ctx context.Context, taskData string) error {
	return f(ctx, taskData)
}

// dlqPushTimeout bounds the dead-letter write, which runs detached from
// the run-loop context so shutdown cannot drop the record.
const dlqPushTimeout = 5 * time.Second

// DLQEntry is the record appended to the dead-letter queue, serialized as
// JSON text. Data holds the original (possibly lossily decoded) task text.
type DLQEntry struct {
	TS       float64 `json:"ts"`
	Consumer string  `json:"consumer"`
	Key      string  `json:"key"`
	Error    string  `json:"error"`
	Data     string  `json:"data"`
}

// Consumer drains one named queue with one dedicated worker goroutine.
// A process may run any number of consumers, each bound to its own queue;
// they share nothing beyond the store client.
type Consumer struct {
	store     Queue
	queue     string
	processor Processor
	name      string
	dlqKey    string
	logger    *slog.Logger

	popTimeout     time.Duration
	errorPause     time.Duration
	maxErrorStreak int
	backoffBase    time.Duration
	backoffCap     time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a consumer bound to the given queue. The processor receives
// every successfully decoded task.
func New(store Queue, queue string, processor Processor, opts ...Option) (*Consumer, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if queue == "" {
		return nil, ErrQueueEmpty
	}
	if processor == nil {
		return nil, ErrProcessorNil
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	name := options.name
	if name == "" {
		name = generateName(queue)
	}
	dlqKey := options.dlqKey
	if dlqKey == "" {
		dlqKey = "dlq:" + queue
	}

	return &Consumer{
		store:          store,
		queue:          queue,
		processor:      processor,
		name:           name,
		dlqKey:         dlqKey,
		logger:         options.logger,
		popTimeout:     options.popTimeout,
		errorPause:     options.errorPause,
		maxErrorStreak: options.maxErrorStreak,
		backoffBase:    options.backoffBase,
		backoffCap:     options.backoffCap,
	}, nil
}

// Name returns the worker identity used in logs and DLQ entries.
func (c *Consumer) Name() string { return c.name }

// Start spawns the worker goroutine. Calling Start on a running consumer is
// a no-op.
func (c *Consumer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Debug("start called on running consumer", slog.String("consumer", c.name))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx, c.done)

	c.logger.Info("consumer started",
		slog.String("consumer", c.name),
		slog.String("queue", c.queue))
}

// Stop signals the run-loop to exit after its current blocking wait and
// waits up to timeout for it to finish. An overrun is logged, not returned:
// the loop observes cancellation at every suspension point, so the worst
// case is one pop interval plus an in-flight platform call.
func (c *Consumer) Stop(timeout time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.logger.Debug("stop called on stopped consumer", slog.String("consumer", c.name))
		return
	}
	cancel, done := c.cancel, c.done
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()

	select {
	case <-done:
		c.logger.Info("consumer stopped", slog.String("consumer", c.name))
	case <-time.After(timeout):
		c.logger.Warn("consumer did not stop within timeout",
			slog.String("consumer", c.name),
			slog.Duration("timeout", timeout))
	}
}

// Run starts the consumer and returns a function suitable for errgroup.
func (c *Consumer) Run(ctx context.Context, stopTimeout time.Duration) func() error {
	return func() error {
		c.Start()
		<-ctx.Done()
		c.Stop(stopTimeout)
		return nil
	}
}

// run is the worker loop. Task-level failures never escape it; they are
// converted to a DLQ write or a pause-and-continue.
func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	c.logger.Info("task processing loop started",
		slog.String("consumer", c.name),
		slog.String("queue", c.queue))

	errorStreak := 0

	for {
		if ctx.Err() != nil {
			c.logger.Info("task processing loop stopped", slog.String("consumer", c.name))
			return
		}

		taskData, err := c.store.PopBlocking(ctx, c.queue, c.popTimeout)
		if err != nil {
			if errors.Is(err, broker.ErrNoTask) {
				// Idle timeout: the only unblocking cancellation point.
				errorStreak = 0
				continue
			}
			if ctx.Err() != nil {
				continue
			}

			errorStreak++
			c.logger.Error("store error during blocking pop",
				slog.String("consumer", c.name),
				slog.Int("streak", errorStreak),
				slog.String("error", err.Error()))
			c.sleep(ctx, c.storeErrorPause(errorStreak))
			continue
		}

		errorStreak = 0

		if !utf8.ValidString(taskData) {
			// Decoding failure is permanent for this item: keep a lossy
			// rendition for the DLQ record and discard the task.
			lossy := strings.ToValidUTF8(taskData, string(utf8.RuneError))
			c.logger.Error("task data is not valid UTF-8, discarding",
				slog.String("consumer", c.name),
				slog.Int("raw_len", len(taskData)))
			c.pushToDLQ(ctx, lossy, ErrDecodeFailure)
			continue
		}

		c.handle(ctx, taskData)
	}
}

// handle dispatches one decoded task and maps the processor outcome onto the
// engine's failure semantics.
func (c *Consumer) handle(ctx context.Context, taskData string) {
	err := c.process(ctx, taskData)

	switch {
	case err == nil:
		c.logger.Debug("task handled", slog.String("consumer", c.name))

	case errors.Is(err, ErrPermanent):
		c.logger.Error("permanent failure processing task, discarding",
			slog.String("consumer", c.name),
			slog.String("error", err.Error()))
		c.pushToDLQ(ctx, taskData, err)

	case errors.Is(err, ErrTransient):
		c.logger.Warn("transient failure processing task",
			slog.String("consumer", c.name),
			slog.String("error", err.Error()))
		c.sleep(ctx, c.errorPause)

	default:
		c.logger.Error("unexpected error processing task",
			slog.String("consumer", c.name),
			slog.String("error", err.Error()))
		c.pushToDLQ(ctx, taskData, err)
		c.sleep(ctx, 2*c.errorPause)
	}
}

// process invokes the processor with panic recovery. A panicking processor
// must not take the worker down with it.
func (c *Consumer) process(ctx context.Context, taskData string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in processor: %v", r)
		}
	}()
	return c.processor.Process(ctx, taskData)
}

// storeErrorPause returns the pause after a store-level pop failure: a small
// fixed pause below the streak threshold, exponential growth capped above it.
func (c *Consumer) storeErrorPause(streak int) time.Duration {
	if streak < c.maxErrorStreak {
		return c.errorPause
	}
	over := streak - c.maxErrorStreak
	if over > 30 {
		over = 30
	}
	d := c.backoffBase << uint(over)
	if d > c.backoffCap || d <= 0 {
		d = c.backoffCap
	}
	return d
}

func (c *Consumer) pushToDLQ(ctx context.Context, taskData string, cause error) {
	// The failure record must outlive a shutdown that cancelled the run
	// loop; only the bounded timeout limits this write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dlqPushTimeout)
	defer cancel()

	entry := DLQEntry{
		TS:       float64(time.Now().UnixNano()) / float64(time.Second),
		Consumer: c.name,
		Key:      c.queue,
		Error:    cause.Error(),
		Data:     taskData,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("failed to serialize DLQ entry",
			slog.String("consumer", c.name),
			slog.String("error", err.Error()))
		return
	}
	if err := c.store.Push(ctx, c.dlqKey, string(payload)); err != nil {
		c.logger.Error("failed to push task to DLQ",
			slog.String("consumer", c.name),
			slog.String("dlq", c.dlqKey),
			slog.String("error", err.Error()))
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// generateName builds a worker identity unique per process and queue so logs
// from a fleet of workers stay distinguishable.
func generateName(queue string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	safeQueue := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == ':':
			return r
		default:
			return '_'
		}
	}, queue)
	return fmt.Sprintf("%s-%d-%s-%s", hostname, os.Getpid(), uuid.NewString()[:8], safeQueue)
}
