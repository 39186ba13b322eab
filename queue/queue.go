package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/funnel/task"
)

var (
	// ErrInvalidCeiling is returned by New when the concurrency
	// ceiling is below one. The queue is never constructed.
	ErrInvalidCeiling = errors.New("queue: concurrency ceiling must be at least 1")

	// ErrContended is returned by diagnostic probes (Len, Tasks) when
	// the guarding lock is already held. Probes fail outright rather
	// than wait so they can never stall a monitoring path.
	ErrContended = errors.New("queue: lock contended")
)

// Substrate is the external pool the queue borrows workers from.
// Go must dispatch fn asynchronously and return immediately, and must
// accept arbitrarily many outstanding dispatches.
type Substrate interface {
	Go(fn func())
}

// Runner executes a single dequeued task. The queue installs t.Run by
// default; the dispatcher replaces it with a middleware chain.
type Runner func(ctx context.Context, t *task.Task)

// Queue is a limited-concurrency executor: a FIFO task queue drained
// by at most ceiling concurrent worker activations borrowed from a
// Substrate.
//
// One mutex guards the FIFO, the active-activation count, and the
// total-submitted counter as a single atomic unit. Every mutation and
// every counter read happens under that lock.
//
// Task panics are not intercepted. A panicking task terminates its
// worker activation abnormally and the panic propagates out of the
// substrate goroutine; install middleware.Recover in the runner to
// change that.
type Queue struct {
	substrate Substrate
	ceiling   int
	run       Runner
	logger    *slog.Logger

	mu      sync.Mutex
	items   []*task.Task
	total   uint64
	active  int
	dequeue func() // invoked after each pop, outside the lock
}

// Option configures a Queue.
type Option func(*Queue)

// WithRunner replaces the default runner (t.Run) used by worker
// activations and inline execution.
func WithRunner(r Runner) Option {
	return func(q *Queue) { q.run = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue that drains through s with at most ceiling
// concurrent worker activations.
func New(s Substrate, ceiling int, opts ...Option) (*Queue, error) {
	if ceiling < 1 {
		return nil, ErrInvalidCeiling
	}

	q := &Queue{
		substrate: s,
		ceiling:   ceiling,
		logger:    slog.Default(),
	}
	q.run = func(ctx context.Context, t *task.Task) { _ = t.Run(ctx) }

	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Ceiling returns the configured concurrency ceiling.
func (q *Queue) Ceiling() int { return q.ceiling }

// SetDequeueHook installs fn to be called once per dequeued or removed
// task, after the guarding lock is released. The admission gate uses
// this to wake blocked producers. Install hooks before submitting.
func (q *Queue) SetDequeueHook(fn func()) {
	q.mu.Lock()
	q.dequeue = fn
	q.mu.Unlock()
}

// Submit appends t to the FIFO tail and returns immediately. If fewer
// than ceiling worker activations are active, one more is requested
// from the substrate. Submit never waits for execution.
func (q *Queue) Submit(t *task.Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.total++
	spawn := q.active < q.ceiling
	if spawn {
		q.active++
	}
	q.mu.Unlock()

	if spawn {
		q.logger.Debug("worker activation requested")
		q.substrate.Go(q.drain)
	}
}

// TryRemove removes t from the queue if it is still present and
// unclaimed. It returns false if a worker activation already dequeued
// t; the caller must then leave execution to that activation.
func (q *Queue) TryRemove(t *task.Task) bool {
	q.mu.Lock()
	removed := q.removeLocked(t)
	hook := q.dequeue
	q.mu.Unlock()

	if removed && hook != nil {
		hook()
	}
	return removed
}

func (q *Queue) removeLocked(t *task.Task) bool {
	for i, qt := range q.items {
		if qt == t {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// TryExecuteInline lets the calling worker activation execute t
// directly instead of waiting for a future activation cycle — a
// starvation-avoidance path for dependent work. The caller must pass
// the context it received from its activation; callers outside an
// activation are refused.
//
// If wasQueued is true, t is first atomically removed from the queue.
// If removal fails (another activation already claimed t) inline
// execution is refused and the caller must not run t itself.
func (q *Queue) TryExecuteInline(ctx context.Context, t *task.Task, wasQueued bool) bool {
	if !IsActivation(ctx) {
		return false
	}
	if wasQueued && !q.TryRemove(t) {
		return false
	}
	q.run(ctx, t)
	return true
}

// Snapshot returns a consistent snapshot of the three counters, taken
// under the same lock that guards mutation.
func (q *Queue) Snapshot() task.Counters {
	q.mu.Lock()
	defer q.mu.Unlock()
	return task.Counters{
		TotalQueued:    q.total,
		CurrentQueued:  len(q.items),
		CurrentRunning: q.active,
	}
}

// Len reports the number of queued tasks. It probes the guarding lock
// without blocking and returns ErrContended if the lock is held.
func (q *Queue) Len() (int, error) {
	if !q.mu.TryLock() {
		return 0, ErrContended
	}
	defer q.mu.Unlock()
	return len(q.items), nil
}

// Tasks returns a copy of the queued tasks in FIFO order. Like Len it
// fails with ErrContended rather than wait for the lock.
func (q *Queue) Tasks() ([]*task.Task, error) {
	if !q.mu.TryLock() {
		return nil, ErrContended
	}
	defer q.mu.Unlock()
	out := make([]*task.Task, len(q.items))
	copy(out, q.items)
	return out, nil
}

// drain is one worker activation: it pops and executes tasks until the
// queue is empty, then decrements the active count and exits. The
// active count is adjusted only here and in Submit, never elsewhere.
func (q *Queue) drain() {
	ctx := withActivation(context.Background())

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.active--
			q.mu.Unlock()
			return
		}
		t := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		hook := q.dequeue
		q.mu.Unlock()

		if hook != nil {
			hook()
		}
		q.run(ctx, t)
	}
}

// activationKey marks a context as belonging to a worker activation.
type activationKey struct{}

func withActivation(ctx context.Context) context.Context {
	return context.WithValue(ctx, activationKey{}, true)
}

// IsActivation reports whether ctx was issued to a worker activation.
// TryExecuteInline uses it to recognize eligible callers.
func IsActivation(ctx context.Context) bool {
	ok, _ := ctx.Value(activationKey{}).(bool)
	return ok
}
