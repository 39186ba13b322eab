package funnel

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xraph/funnel/ext"
	"github.com/xraph/funnel/gate"
	"github.com/xraph/funnel/middleware"
	"github.com/xraph/funnel/queue"
	"github.com/xraph/funnel/substrate"
	"github.com/xraph/funnel/task"
)

// Dispatcher wires the admission gate and the limited-concurrency
// queue together with middleware and lifecycle extensions. Create one
// with New and functional options; there is no process-wide instance —
// pass the Dispatcher to whatever needs it.
type Dispatcher struct {
	config     Config
	logger     *slog.Logger
	substrate  queue.Substrate
	mws        []middleware.Middleware
	extensions *ext.Registry

	queue *queue.Queue
	gate  *gate.Gate

	closed atomic.Bool
}

// New creates a Dispatcher. The concurrency ceiling and backlog bound
// come from the configuration (see DefaultConfig); construction fails
// if either is below one.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.substrate == nil {
		d.substrate = substrate.Goroutines{}
	}
	if d.extensions == nil {
		d.extensions = ext.NewRegistry(d.logger)
	}

	chain := middleware.Chain(d.mws...)

	q, err := queue.New(d.substrate, d.config.Concurrency,
		queue.WithLogger(d.logger),
		queue.WithRunner(d.runner(chain)),
	)
	if err != nil {
		return nil, err
	}

	g, err := gate.New(q, d.config.MaxBacklog,
		gate.WithLogger(d.logger),
		gate.WithRateLimit(d.config.RateLimit, d.config.RateBurst),
	)
	if err != nil {
		return nil, err
	}

	d.queue = q
	d.gate = g
	return d, nil
}

// runner builds the queue runner: middleware chain around the task
// body, bracketed by lifecycle events. Panics are not intercepted here;
// install middleware.Recover to contain them.
func (d *Dispatcher) runner(chain middleware.Middleware) queue.Runner {
	return func(ctx context.Context, t *task.Task) {
		d.extensions.EmitTaskStarted(ctx, t)

		start := time.Now()
		err := chain(ctx, t, t.Run)
		elapsed := time.Since(start)

		if err != nil {
			d.extensions.EmitTaskFailed(ctx, t, err)
			d.logger.Debug("task failed",
				slog.String("task_name", t.Name()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return
		}
		d.extensions.EmitTaskCompleted(ctx, t, elapsed)
	}
}

// Submit blocks until backlog capacity is available, hands t to the
// queue, and returns. Execution is asynchronous; Submit never waits
// for it. It returns ctx.Err() if ctx is cancelled while blocked and
// ErrClosed after Close.
func (d *Dispatcher) Submit(ctx context.Context, t *task.Task) error {
	if t == nil {
		return ErrNilTask
	}
	if d.closed.Load() {
		return ErrClosed
	}

	if err := d.gate.Submit(ctx, t); err != nil {
		return err
	}
	d.extensions.EmitTaskAdmitted(ctx, t)
	return nil
}

// Counters returns a consistent snapshot of the queue's counters.
func (d *Dispatcher) Counters() task.Counters { return d.queue.Snapshot() }

// Queue returns the underlying limited-concurrency queue, for
// diagnostics, TryRemove, and inline execution.
func (d *Dispatcher) Queue() *queue.Queue { return d.queue }

// Gate returns the admission gate.
func (d *Dispatcher) Gate() *gate.Gate { return d.gate }

// Extensions returns the lifecycle extension registry. Register
// extensions before submitting work.
func (d *Dispatcher) Extensions() *ext.Registry { return d.extensions }

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Close stops admitting new tasks, waits for queued and running work
// to finish (bounded by ctx), and notifies Shutdown extensions.
// Repeat calls are no-ops. Tasks still executing when ctx expires keep
// running; funnel never force-aborts work.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.logger.Info("dispatcher closing",
		slog.Int("backlog", d.queue.Snapshot().CurrentQueued),
	)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := d.queue.Snapshot()
		if s.CurrentQueued == 0 && s.CurrentRunning == 0 {
			d.extensions.EmitShutdown(ctx)
			d.logger.Info("dispatcher closed")
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			d.logger.Warn("dispatcher close timed out",
				slog.Int("backlog", s.CurrentQueued),
				slog.Int("running", s.CurrentRunning),
			)
			d.extensions.EmitShutdown(ctx)
			return ctx.Err()
		}
	}
}
