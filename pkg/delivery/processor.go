package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/nudgekit/pkg/consumer"
	"github.com/dmitrymomot/nudgekit/pkg/task"
)

// StateWriter records a delivery receipt against a reminder record. The
// reminder store implements it; processors without an associated reminder
// state run with a nil writer.
type StateWriter interface {
	SetField(ctx context.Context, reminderID, field, value string) error
}

// ReceiptField is the reminder hash field the platform delivery identifier
// is written back to. Follow-up builders read it to address the original
// message in place.
const ReceiptField = "initial_message_ts"

// Processor turns queue tasks into platform calls. It implements
// consumer.Processor: one Processor instance per queue wraps one Deliverer
// (a concrete sender operation such as "send new message" or "update
// existing message") with the bounded retry policy.
type Processor struct {
	retrier      *Retrier
	state        StateWriter
	receiptField string
	logger       *slog.Logger
}

// NewProcessor creates a task processor over the given retry policy.
func NewProcessor(retrier *Retrier, opts ...ProcessorOption) (*Processor, error) {
	if retrier == nil {
		return nil, ErrRetrierNil
	}

	p := &Processor{
		retrier:      retrier,
		receiptField: ReceiptField,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Update-path retry defaults. A cosmetic in-place edit is not worth the
// full send budget: the record already reads correctly on the next poll.
const (
	UpdateMaxRetries = 1
	UpdateRetryDelay = 5 * time.Second
)

// NewUpdateProcessor creates a processor for in-place message updates. It
// wraps the update Deliverer with the tighter update retry policy; there is
// no receipt write-back because the edit targets an identifier the reminder
// record already holds.
func NewUpdateProcessor(d Deliverer, opts ...ProcessorOption) (*Processor, error) {
	retrier, err := NewRetrier(d, WithMaxRetries(UpdateMaxRetries), WithRetryDelay(UpdateRetryDelay))
	if err != nil {
		return nil, err
	}
	return NewProcessor(retrier, opts...)
}

// Process parses the task envelope, runs the delivery retry loop, and maps
// the outcome onto the consumer engine's failure taxonomy:
//
//   - invalid envelope: permanent (dead-lettered, handled)
//   - permanent platform failure: permanent (dead-lettered, handled)
//   - retries exhausted: permanent (dead-lettered, handled; the failure is
//     durably recorded, the item is not requeued)
//   - shutdown observed mid-retry: transient (the engine pauses and moves on)
func (p *Processor) Process(ctx context.Context, taskData string) error {
	env, err := task.Unmarshal(taskData)
	if err != nil {
		return consumer.Permanent(err)
	}

	receipt, err := p.retrier.Deliver(ctx, env.Recipient, env.Payload)
	switch {
	case err == nil:
		p.recordReceipt(ctx, env, receipt)
		return nil
	case errors.Is(err, ErrPermanentFailure):
		return consumer.Permanent(err)
	case errors.Is(err, ErrRetriesExhausted):
		return consumer.Permanent(err)
	case errors.Is(err, ErrInterrupted):
		return consumer.Transient(err)
	default:
		return err
	}
}

// recordReceipt writes the platform-assigned delivery identifier back into
// the reminder record. Delivery success is judged independently of this
// write-back: a failure here is logged and swallowed.
func (p *Processor) recordReceipt(ctx context.Context, env *task.Envelope, receipt *Receipt) {
	if p.state == nil || env.ReminderID == "" || receipt == nil || receipt.MessageID == "" {
		return
	}
	if err := p.state.SetField(ctx, env.ReminderID, p.receiptField, receipt.MessageID); err != nil {
		p.logger.Warn("failed to record delivery receipt",
			slog.String("reminder_id", env.ReminderID),
			slog.String("field", p.receiptField),
			slog.String("error", err.Error()))
	}
	for field, value := range receipt.Data {
		if err := p.state.SetField(ctx, env.ReminderID, field, value); err != nil {
			p.logger.Warn("failed to record platform data",
				slog.String("reminder_id", env.ReminderID),
				slog.String("field", field),
				slog.String("error", err.Error()))
		}
	}
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithStateWriter enables the post-delivery receipt write-back.
func WithStateWriter(w StateWriter) ProcessorOption {
	return func(p *Processor) {
		p.state = w
	}
}

// WithReceiptField overrides the hash field the delivery identifier is
// written to.
func WithReceiptField(field string) ProcessorOption {
	return func(p *Processor) {
		if field != "" {
			p.receiptField = field
		}
	}
}

// WithProcessorLogger sets the logger for the processor.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

var _ consumer.Processor = (*Processor)(nil)
