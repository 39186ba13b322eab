// Package queue implements the limited-concurrency executor at the
// heart of funnel: a FIFO of tasks multiplexed onto at most N
// concurrently active worker activations borrowed from a substrate
// pool.
//
// # Worker activations
//
// The queue never creates goroutines itself. When a task arrives and
// fewer than ceiling activations are active, it asks the [Substrate]
// for one. Each activation loops: pop the FIFO head, execute, repeat;
// when it observes an empty queue it retires and releases its slot.
// The active count therefore moves in exactly two places — up when an
// activation is requested, down when one retires — which is what keeps
// the ceiling invariant race-free.
//
// # Counters
//
// [Queue.Snapshot] returns a [task.Counters] taken under the same lock
// that guards mutation, so TotalQueued, CurrentQueued, and
// CurrentRunning are always consistent with one another. The
// diagnostic probes [Queue.Len] and [Queue.Tasks] only try the lock:
// if it is held they return [ErrContended] instead of waiting.
//
// # Inline execution
//
// A task running inside an activation may execute a dependent task
// immediately via [Queue.TryExecuteInline] rather than wait for a
// future activation cycle. Eligibility is carried on the context the
// activation hands to each task; see [IsActivation].
package queue
