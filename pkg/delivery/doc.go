// Package delivery wraps outbound platform calls with a bounded retry loop
// and a per-channel permanent/transient error classification.
//
// The actual chat-API senders live outside this module; they plug in through
// the Deliverer interface and report structured failures as *APIError so
// Classify can decide, by error code and HTTP status, whether another
// attempt can possibly succeed:
//
//   - bad auth, forbidden, not-found, malformed request, payload too large,
//     content policy rejection: permanent, abort after one attempt
//   - rate limiting, 5xx, network timeouts, connection resets, unrecognized
//     codes: transient, retry up to the configured bound
//
// Processor glues a Retrier into the consumer engine: it parses the task
// envelope, runs the retry loop, and on success optionally writes the
// platform-assigned message identifier back into the reminder record so
// later follow-ups can address the message in a thread. That write-back is
// best-effort; its failure never fails the delivery.
//
//	retrier, _ := delivery.NewRetrier(slackSender, delivery.WithMaxRetries(2))
//	proc, _ := delivery.NewProcessor(retrier, delivery.WithStateWriter(store))
//	c, _ := consumer.New(store, "slack_message_send_queue", proc)
package delivery
