package gate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/funnel/gate"
	"github.com/xraph/funnel/queue"
	"github.com/xraph/funnel/task"
)

type goSubstrate struct{}

func (goSubstrate) Go(fn func()) { go fn() }

// manualSubstrate holds activation requests until the test releases
// them, so backlog builds deterministically.
type manualSubstrate struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualSubstrate) Go(fn func()) {
	m.mu.Lock()
	m.fns = append(m.fns, fn)
	m.mu.Unlock()
}

func (m *manualSubstrate) runAll() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	var wg sync.WaitGroup
	for _, fn := range fns {
		fn := fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	wg.Wait()
}

func newGate(t *testing.T, s queue.Substrate, ceiling, maxBacklog int) (*gate.Gate, *queue.Queue) {
	t.Helper()
	q, err := queue.New(s, ceiling)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	g, err := gate.New(q, maxBacklog)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	return g, q
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_InvalidBacklog(t *testing.T) {
	q, err := queue.New(goSubstrate{}, 1)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	for _, n := range []int{0, -1} {
		g, err := gate.New(q, n)
		if !errors.Is(err, gate.ErrInvalidBacklog) {
			t.Fatalf("maxBacklog %d: err = %v, want ErrInvalidBacklog", n, err)
		}
		if g != nil {
			t.Fatalf("maxBacklog %d: expected nil gate", n)
		}
	}
}

// ---------------------------------------------------------------------------
// Backpressure
// ---------------------------------------------------------------------------

func TestSubmit_BlocksAtBacklogBound(t *testing.T) {
	sub := &manualSubstrate{}
	const k = 3
	g, q := newGate(t, sub, 1, k)

	// Fill the backlog to exactly K. No activation runs yet.
	for j := 0; j < k; j++ {
		if err := g.Submit(context.Background(), task.New("fill", nil)); err != nil {
			t.Fatalf("fill submit: %v", err)
		}
	}
	if s := q.Snapshot(); s.CurrentQueued != k {
		t.Fatalf("CurrentQueued = %d, want %d", s.CurrentQueued, k)
	}

	// The K+1-th submit must block until the backlog drops.
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- g.Submit(context.Background(), task.New("overflow", nil))
	}()

	select {
	case err := <-unblocked:
		t.Fatalf("submit returned early (err=%v) with saturated backlog", err)
	case <-time.After(100 * time.Millisecond):
	}

	// Drain; the blocked producer must complete.
	go sub.runAll()

	select {
	case err := <-unblocked:
		if err != nil {
			t.Fatalf("blocked submit returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit still blocked after backlog drained")
	}
	sub.runAll()
}

func TestSubmit_FiveTasksCeilingTwoBacklogThree(t *testing.T) {
	g, q := newGate(t, goSubstrate{}, 2, 3)

	var completed atomic.Int64
	var wg sync.WaitGroup

	for j := 0; j < 5; j++ {
		wg.Add(1)
		err := g.Submit(context.Background(), task.New("sleepy", func(_ context.Context) error {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		}))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	wg.Wait()
	if completed.Load() != 5 {
		t.Fatalf("completed %d tasks, want 5", completed.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := q.Snapshot(); s.CurrentQueued == 0 && s.CurrentRunning == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue did not go idle: %+v", q.Snapshot())
}

func TestSubmit_RacingProducersAdmitOne(t *testing.T) {
	sub := &manualSubstrate{}
	const k = 3
	g, q := newGate(t, sub, 1, k)

	// Backlog at K-1: exactly one free slot.
	for j := 0; j < k-1; j++ {
		if err := g.Submit(context.Background(), task.New("fill", nil)); err != nil {
			t.Fatalf("fill submit: %v", err)
		}
	}

	results := make(chan error, 2)
	for j := 0; j < 2; j++ {
		go func() {
			results <- g.Submit(context.Background(), task.New("racer", nil))
		}()
	}

	// One producer wins the slot immediately.
	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("winning submit errored: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no producer was admitted")
	}

	// The other stays blocked at the bound.
	select {
	case err := <-results:
		t.Fatalf("second producer admitted past the bound (err=%v)", err)
	case <-time.After(100 * time.Millisecond):
	}
	if s := q.Snapshot(); s.CurrentQueued != k {
		t.Fatalf("CurrentQueued = %d, want %d", s.CurrentQueued, k)
	}

	// Draining frees capacity for the loser.
	go sub.runAll()
	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("blocked submit errored: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second producer never admitted")
	}
	sub.runAll()
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestSubmit_ContextCancelledWhileBlocked(t *testing.T) {
	sub := &manualSubstrate{}
	g, _ := newGate(t, sub, 1, 1)

	if err := g.Submit(context.Background(), task.New("fill", nil)); err != nil {
		t.Fatalf("fill submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- g.Submit(ctx, task.New("doomed", nil))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-unblocked:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not observe cancellation")
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestSubmit_RateLimit(t *testing.T) {
	q, err := queue.New(&manualSubstrate{}, 1)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	g, err := gate.New(q, 100, gate.WithRateLimit(20, 1))
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}

	start := time.Now()
	for j := 0; j < 4; j++ {
		if err := g.Submit(context.Background(), task.New("limited", nil)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	// 20/s with burst 1: four admissions need roughly 150ms.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("4 rate-limited submits took %v, expected >= 100ms", elapsed)
	}
}
