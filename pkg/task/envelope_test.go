package task_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nudgekit/pkg/broker"
	"github.com/dmitrymomot/nudgekit/pkg/task"
)

func TestEnvelope_Validate(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"text":"hi"}`)

	tests := []struct {
		name    string
		env     task.Envelope
		wantErr error
	}{
		{
			name: "valid",
			env:  task.Envelope{Recipient: "C1", Payload: payload},
		},
		{
			name:    "missing recipient",
			env:     task.Envelope{Payload: payload},
			wantErr: task.ErrMissingRecipient,
		},
		{
			name:    "missing payload",
			env:     task.Envelope{Recipient: "C1"},
			wantErr: task.ErrMissingPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.env.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves all fields", func(t *testing.T) {
		t.Parallel()

		env := &task.Envelope{
			Recipient:     "U123",
			Channel:       task.ChannelSlack,
			ReminderID:    "rem-1",
			CorrelationID: "corr-1",
			Payload:       json.RawMessage(`{"text":"nudge","blocks":[]}`),
			Context:       map[string]string{"team": "ops"},
		}

		wire, err := task.Marshal(env)
		require.NoError(t, err)

		got, err := task.Unmarshal(wire)
		require.NoError(t, err)
		assert.Equal(t, env.Recipient, got.Recipient)
		assert.Equal(t, env.Channel, got.Channel)
		assert.Equal(t, env.ReminderID, got.ReminderID)
		assert.Equal(t, env.CorrelationID, got.CorrelationID)
		assert.JSONEq(t, string(env.Payload), string(got.Payload))
		assert.Equal(t, env.Context, got.Context)
	})

	t.Run("context fields appear verbatim on the wire", func(t *testing.T) {
		t.Parallel()

		wire, err := task.Marshal(&task.Envelope{
			Recipient: "U1",
			Payload:   json.RawMessage(`{}`),
			Context:   map[string]string{"source_flow": "morning_report"},
		})
		require.NoError(t, err)
		assert.Contains(t, wire, `"source_flow":"morning_report"`)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		t.Parallel()

		_, err := task.Unmarshal(`{"recipient":`)
		assert.ErrorIs(t, err, task.ErrInvalidEnvelope)
	})

	t.Run("valid JSON but invalid envelope", func(t *testing.T) {
		t.Parallel()

		_, err := task.Unmarshal(`{"payload":{"text":"x"}}`)
		assert.ErrorIs(t, err, task.ErrInvalidEnvelope)
		assert.ErrorIs(t, err, task.ErrMissingRecipient)
	})

	t.Run("marshal rejects nil", func(t *testing.T) {
		t.Parallel()

		_, err := task.Marshal(nil)
		assert.ErrorIs(t, err, task.ErrEnvelopeNil)
	})
}

func TestEnqueuer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enqueue places task on the named queue", func(t *testing.T) {
		t.Parallel()

		store := broker.NewMemory()
		enq, err := task.NewEnqueuer(store)
		require.NoError(t, err)

		env := &task.Envelope{Recipient: "C1", Payload: json.RawMessage(`{"text":"hi"}`)}
		require.NoError(t, enq.Enqueue(ctx, "slack_message_send_queue", env))

		wire, err := store.PopBlocking(ctx, "slack_message_send_queue", time.Second)
		require.NoError(t, err)

		got, err := task.Unmarshal(wire)
		require.NoError(t, err)
		assert.Equal(t, "C1", got.Recipient)
	})

	t.Run("enqueue validates before pushing", func(t *testing.T) {
		t.Parallel()

		store := broker.NewMemory()
		enq, err := task.NewEnqueuer(store)
		require.NoError(t, err)

		err = enq.Enqueue(ctx, "q", &task.Envelope{Recipient: "C1"})
		assert.ErrorIs(t, err, task.ErrMissingPayload)
		assert.Zero(t, store.QueueLen("q"))
	})

	t.Run("enqueue raw preserves text", func(t *testing.T) {
		t.Parallel()

		store := broker.NewMemory()
		enq, err := task.NewEnqueuer(store)
		require.NoError(t, err)

		raw := `{"recipient":"C1","payload":{"text":"as-is"}}`
		require.NoError(t, enq.EnqueueRaw(ctx, "q", raw))

		got, err := store.PopBlocking(ctx, "q", time.Second)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})

	t.Run("nil store rejected", func(t *testing.T) {
		t.Parallel()

		_, err := task.NewEnqueuer(nil)
		assert.ErrorIs(t, err, task.ErrStoreNil)
	})

	t.Run("empty queue name rejected", func(t *testing.T) {
		t.Parallel()

		enq, err := task.NewEnqueuer(broker.NewMemory())
		require.NoError(t, err)

		err = enq.Enqueue(ctx, "", &task.Envelope{Recipient: "C1", Payload: json.RawMessage(`{}`)})
		assert.ErrorIs(t, err, task.ErrMissingQueue)
	})
}
