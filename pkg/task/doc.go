// Package task defines the task envelope placed on work queues and the
// enqueuer that puts it there.
//
// An Envelope carries a recipient, an opaque channel-specific payload, and
// optional correlation metadata. The wire format is plain JSON text; the
// consumer engine hands that text to a processor, which parses it back with
// Unmarshal.
//
//	env := &task.Envelope{
//		Recipient:  "C024BE91L",
//		Channel:    task.ChannelSlack,
//		ReminderID: id,
//		Payload:    payloadJSON,
//	}
//	err := enqueuer.Enqueue(ctx, "slack_message_send_queue", env)
//
// Caller-supplied context fields are merged in verbatim under "context" and
// travel with the task into the DLQ if processing fails.
package task
