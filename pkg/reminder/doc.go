// Package reminder implements the escalating-reminder lifecycle: the
// persisted record model, the score-ordered follow-up schedule, and the
// operations that move a reminder through it.
//
// A reminder moves pending → resolved when a recipient acknowledges it, or
// pending → error once its follow-up attempts are exhausted. While pending,
// its id sits in the schedule index keyed by the next due timestamp; the
// Poller scans that index, builds a follow-up nudge for each due id under a
// distributed lock, and advances the schedule one escalation interval.
//
// Every mutation that touches both the record and the schedule index
// (initial scheduling, advancing, resolving) runs as one atomic store
// transaction, so the two can never disagree. Records are never deleted;
// resolved and errored reminders remain as an audit trail.
//
// Numeric record fields are persisted as text. Empty or missing values parse
// back to absent, not zero, and a record that fails parsing degrades to
// not-found with a logged diagnostic instead of failing the caller.
package reminder
