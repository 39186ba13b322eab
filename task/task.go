// Package task defines the unit of work accepted by funnel and the
// counter snapshot type shared by the queue and its observers.
package task

import "context"

// Func is the body of a task. It receives the context supplied by the
// worker activation that runs it and reports failure through its error
// return. Funnel never retries a failed task; the error is surfaced to
// middleware and lifecycle hooks only.
type Func func(ctx context.Context) error

// Task is an opaque, argument-less unit of work. Tasks are identified
// by pointer: the same *Task value passed to Submit must be used for
// TryRemove or TryExecuteInline. A Task carries no result channel —
// callers that need a result close over their own plumbing.
type Task struct {
	name string
	fn   Func
}

// New creates a Task with a human-readable name used by logging,
// metrics, and tracing. The name carries no identity semantics; two
// distinct tasks may share a name.
func New(name string, fn Func) *Task {
	return &Task{name: name, fn: fn}
}

// Name returns the task's display name.
func (t *Task) Name() string { return t.name }

// Run executes the task body. A Task with a nil body is a no-op.
func (t *Task) Run(ctx context.Context) error {
	if t.fn == nil {
		return nil
	}
	return t.fn(ctx)
}

// Counters is a consistent point-in-time snapshot of queue state.
// All three fields are read under the queue's guarding lock, so they
// are internally consistent relative to each other.
type Counters struct {
	// TotalQueued counts every task ever accepted by the queue.
	// It is monotonically non-decreasing and increments exactly once
	// per accepted submission.
	TotalQueued uint64

	// CurrentQueued is the number of tasks enqueued but not yet
	// claimed by a worker activation.
	CurrentQueued int

	// CurrentRunning is the number of active worker activations.
	// It never exceeds the queue's concurrency ceiling.
	CurrentRunning int
}
