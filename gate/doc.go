// Package gate implements backpressure for a funnel queue: a blocking
// admission gate that delays producers while the queue's backlog is at
// its configured bound.
//
// The gate is deliberately simple. It does not time out, it does not
// reorder producers, and it never rejects a task — a Submit call
// either returns after the task has been handed to the queue or, if a
// context with cancellation is supplied, returns the context's error.
//
// An optional token-bucket rate limit (golang.org/x/time/rate) can be
// layered on top of the backlog bound with [WithRateLimit].
package gate
