// Package funnel is a bounded-concurrency work dispatcher. It accepts
// tasks from arbitrary producer goroutines, caps how many execute
// simultaneously, and applies backpressure so an unbounded backlog
// cannot accumulate. It sits between a high-rate producer and a shared
// worker-pool substrate, protecting the substrate from overload while
// giving producers a simple blocking-submission contract.
//
// # Quick Start
//
//	d, err := funnel.New(
//	    funnel.WithConcurrency(4),
//	    funnel.WithMaxBacklog(64),
//	)
//	if err != nil {
//	    return err
//	}
//	defer d.Close(context.Background())
//
//	err = d.Submit(ctx, task.New("resize-image", func(ctx context.Context) error {
//	    return resize(ctx, img)
//	}))
//
// Submit blocks while the backlog is at its bound and returns once the
// task has been handed to the queue; execution is asynchronous and not
// awaited.
//
// # Architecture
//
// Two small components carry the mechanism. The [queue.Queue] is a
// limited-concurrency executor: a FIFO drained by at most N concurrent
// worker activations borrowed from a [substrate.Pool]. The [gate.Gate]
// is the blocking front door: it delays producers while the queue's
// backlog is saturated. The [Dispatcher] wires the two together with
// middleware and lifecycle extensions.
//
// There is no persistence, no retry, and no priority ordering. A task
// that fails has failed; a task that panics takes its worker activation
// with it unless [middleware.Recover] is installed.
package funnel
