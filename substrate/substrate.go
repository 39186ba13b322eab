// Package substrate provides implementations of the pool contract a
// funnel queue borrows its workers from: dispatch a closure
// asynchronously, return immediately, accept arbitrarily many
// outstanding dispatches.
package substrate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool dispatches closures asynchronously. Go must return without
// waiting for fn to run.
type Pool interface {
	Go(fn func())
}

// Goroutines is the default substrate: one goroutine per dispatch,
// unbounded. The queue's own concurrency ceiling bounds how many
// dispatches it ever has outstanding, so in practice at most ceiling
// goroutines exist per queue.
type Goroutines struct{}

// Go runs fn on a new goroutine.
func (Goroutines) Go(fn func()) { go fn() }

// Bounded is a substrate that caps how many dispatched closures run at
// once, using a weighted semaphore. Dispatch itself never blocks: each
// closure waits for a slot on its own goroutine. Use it to share one
// OS-level parallelism budget across several queues.
type Bounded struct {
	sem *semaphore.Weighted
}

// NewBounded creates a Bounded substrate running at most n closures
// concurrently. It panics if n < 1 (programming error).
func NewBounded(n int64) *Bounded {
	if n < 1 {
		panic("substrate: bounded pool size must be at least 1")
	}
	return &Bounded{sem: semaphore.NewWeighted(n)}
}

// Go dispatches fn; fn starts once a slot is free.
func (b *Bounded) Go(fn func()) {
	go func() {
		// Acquire with a background context never fails.
		_ = b.sem.Acquire(context.Background(), 1)
		defer b.sem.Release(1)
		fn()
	}()
}
