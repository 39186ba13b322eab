package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/funnel/queue"
	"github.com/xraph/funnel/task"
)

// ErrInvalidBacklog is returned by New when maxBacklog is below one.
var ErrInvalidBacklog = errors.New("gate: max backlog must be at least 1")

// Gate is the blocking front door of a [queue.Queue]. It bounds the
// number of tasks waiting in the queue: Submit blocks the producer
// until CurrentQueued drops below the configured maximum, then
// forwards the task unconditionally.
//
// Instead of polling, the gate waits on a generation channel that is
// broadcast (closed and replaced) each time the queue dequeues or
// removes a task. The observable contract is exactly that of an
// admission poll loop: block while the backlog is saturated, succeed
// as soon as it is not. There is no fairness guarantee across
// producers — first blocked is not necessarily first served.
type Gate struct {
	q          *queue.Queue
	maxBacklog int
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu   sync.Mutex
	wake chan struct{}
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithRateLimit adds a token-bucket limit on admissions: at most limit
// tasks per second sustained, with bursts up to burst. A burst below
// one is raised to one. Zero limit disables rate limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(g *Gate) {
		if limit <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// New creates a Gate in front of q admitting at most maxBacklog
// queued-but-unclaimed tasks. It installs itself as q's dequeue hook;
// a queue has exactly one gate.
func New(q *queue.Queue, maxBacklog int, opts ...Option) (*Gate, error) {
	if maxBacklog < 1 {
		return nil, ErrInvalidBacklog
	}

	g := &Gate{
		q:          q,
		maxBacklog: maxBacklog,
		logger:     slog.Default(),
		wake:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	q.SetDequeueHook(g.broadcast)
	return g, nil
}

// MaxBacklog returns the configured backlog bound.
func (g *Gate) MaxBacklog() int { return g.maxBacklog }

// Submit blocks until the queue's backlog is below the bound, then
// hands t to the queue and returns nil. Execution is asynchronous and
// not awaited. The task must be safe to run concurrently with any
// other submitted task, on an arbitrary goroutine.
//
// Submit returns ctx.Err() if ctx is cancelled while blocked; pass
// context.Background() for the block-indefinitely contract. A
// permanently saturated backlog blocks forever with no diagnostic
// signal beyond the caller's own context.
func (g *Gate) Submit(ctx context.Context, t *task.Task) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	blocked := false
	for {
		g.mu.Lock()
		if g.q.Snapshot().CurrentQueued < g.maxBacklog {
			// Admit while still holding the gate lock so racing
			// producers observe the updated backlog.
			g.q.Submit(t)
			g.mu.Unlock()
			return nil
		}
		wake := g.wake
		g.mu.Unlock()

		if !blocked {
			blocked = true
			g.logger.Debug("admission blocked on saturated backlog",
				slog.Int("max_backlog", g.maxBacklog),
			)
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// broadcast wakes every producer blocked in Submit. It runs once per
// dequeued or removed task, outside the queue's lock.
func (g *Gate) broadcast() {
	g.mu.Lock()
	close(g.wake)
	g.wake = make(chan struct{})
	g.mu.Unlock()
}
