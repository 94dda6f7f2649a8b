package task

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Channel identifies the delivery platform a task targets.
type Channel string

const (
	ChannelSlack Channel = "slack"
	ChannelLine  Channel = "line"
)

// Envelope is the unit of work placed on a queue for a worker to process.
// It is immutable once enqueued; the queue owns it until exactly one worker
// pops it.
type Envelope struct {
	// Recipient is the platform-level destination (channel id, user id).
	Recipient string `json:"recipient"`
	// Channel names the target platform. Optional on the wire because the
	// queue itself is channel-specific; kept for logging and DLQ triage.
	Channel Channel `json:"channel,omitempty"`
	// ReminderID links the task back to a reminder record, when one exists.
	ReminderID string `json:"reminder_id,omitempty"`
	// CorrelationID ties related tasks together across queues and logs.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Payload is the channel-specific message body, passed through opaquely
	// to the platform sender.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Context carries caller-supplied fields merged in verbatim.
	Context map[string]string `json:"context,omitempty"`
}

// Validate checks the invariants every enqueued task must satisfy.
func (e *Envelope) Validate() error {
	if e.Recipient == "" {
		return ErrMissingRecipient
	}
	if len(e.Payload) == 0 {
		return ErrMissingPayload
	}
	return nil
}

// Marshal serializes the envelope to the wire format stored in the queue.
func Marshal(e *Envelope) (string, error) {
	if e == nil {
		return "", ErrEnvelopeNil
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task envelope: %w", err)
	}
	return string(b), nil
}

// Unmarshal parses queue text back into an envelope and validates it. Both
// malformed JSON and a structurally valid but incomplete envelope are
// reported as ErrInvalidEnvelope; either way the task cannot be processed.
func Unmarshal(data string) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	return &e, nil
}
