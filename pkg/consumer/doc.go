// Package consumer implements the queue-drain engine: a dedicated worker per
// named queue that blocks on the queue with a bounded wait, decodes each
// item, dispatches it to a Processor, and converts every failure into either
// a dead-letter write or a pause-and-continue. A single bad task can never
// crash the worker.
//
// # Failure semantics
//
// The processor classifies its own failures through the error it returns
// (see Processor). Items that fail UTF-8 decoding are dead-lettered with a
// lossy rendition and never reach the processor. Store-level errors during
// the blocking pop escalate through a consecutive-error streak into capped
// exponential backoff, but never terminate the worker.
//
// Delivery is at-least-once at best: an item popped by a worker that dies
// mid-flight is lost, and a transient processor failure drops the item
// without requeueing it. The in-process retry loop (pkg/delivery) plus the
// DLQ are the whole durability story; callers needing stronger guarantees
// must re-drive from the DLQ or the producing side.
//
// # Usage
//
//	c, err := consumer.New(store, "slack_message_send_queue", processor,
//		consumer.WithLogger(log),
//		consumer.WithPopTimeout(5*time.Second),
//	)
//	if err != nil {
//		return err
//	}
//	c.Start()
//	defer c.Stop(10 * time.Second)
//
// Stop is cooperative: the loop observes cancellation at every suspension
// point, so stop latency is bounded by one pop interval plus any in-flight
// platform call.
package consumer
