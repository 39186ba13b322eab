// Package watch provides a real-time stream of task lifecycle events.
// Its [Broker] is a funnel extension that fans events out to
// subscribers over buffered channels, for dashboards, progress
// reporting, and tests that want to observe the pipeline from outside.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/funnel/ext"
	"github.com/xraph/funnel/task"
)

// Kind identifies a lifecycle event.
type Kind string

// Event kinds emitted by the broker.
const (
	KindAdmitted  Kind = "admitted"
	KindStarted   Kind = "started"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindShutdown  Kind = "shutdown"
)

// Event is one observed lifecycle transition.
type Event struct {
	Kind     Kind
	TaskName string
	Elapsed  time.Duration // set for completed events
	Err      error         // set for failed events
	At       time.Time
}

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.TaskAdmitted  = (*Broker)(nil)
	_ ext.TaskStarted   = (*Broker)(nil)
	_ ext.TaskCompleted = (*Broker)(nil)
	_ ext.TaskFailed    = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// Broker receives lifecycle events as an extension and fans them out
// to subscribers. A slow subscriber never blocks the pipeline: when its
// buffer is full the event is dropped and counted.
type Broker struct {
	logger     *slog.Logger
	bufferSize int

	mu   sync.Mutex
	subs map[*Subscriber]struct{}

	published atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Broker.
type Option func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) Option {
	return func(b *Broker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// NewBroker creates a broker. Register it on a dispatcher:
//
//	b := watch.NewBroker(logger)
//	d.Extensions().Register(b)
func NewBroker(logger *slog.Logger, opts ...Option) *Broker {
	b := &Broker{
		logger:     logger,
		bufferSize: DefaultBufferSize,
		subs:       make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "watch-broker" }

// Subscribe creates a subscriber receiving every subsequent event.
func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		broker: b,
		ch:     make(chan Event, b.bufferSize),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Published returns the total number of events fanned out.
func (b *Broker) Published() int64 { return b.published.Load() }

// Dropped returns the number of events lost to full subscriber buffers.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

func (b *Broker) publish(evt Event) {
	evt.At = time.Now()
	b.published.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
			b.logger.Debug("watch event dropped",
				slog.String("kind", string(evt.Kind)),
				slog.String("task_name", evt.TaskName),
			)
		}
	}
}

func (b *Broker) remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// OnTaskAdmitted implements ext.TaskAdmitted.
func (b *Broker) OnTaskAdmitted(_ context.Context, t *task.Task) error {
	b.publish(Event{Kind: KindAdmitted, TaskName: t.Name()})
	return nil
}

// OnTaskStarted implements ext.TaskStarted.
func (b *Broker) OnTaskStarted(_ context.Context, t *task.Task) error {
	b.publish(Event{Kind: KindStarted, TaskName: t.Name()})
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (b *Broker) OnTaskCompleted(_ context.Context, t *task.Task, elapsed time.Duration) error {
	b.publish(Event{Kind: KindCompleted, TaskName: t.Name(), Elapsed: elapsed})
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (b *Broker) OnTaskFailed(_ context.Context, t *task.Task, err error) error {
	b.publish(Event{Kind: KindFailed, TaskName: t.Name(), Err: err})
	return nil
}

// OnShutdown implements ext.Shutdown. It publishes a final event and
// closes every subscriber.
func (b *Broker) OnShutdown(_ context.Context) error {
	b.publish(Event{Kind: KindShutdown})

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	return nil
}

// Subscriber receives broker events until closed. Drain Events() in a
// dedicated goroutine; a full buffer drops events rather than blocking
// the pipeline.
type Subscriber struct {
	broker *Broker
	ch     chan Event
}

// Events returns the receive channel. It is closed by Close or by the
// broker's shutdown.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Close detaches the subscriber and closes its channel.
func (s *Subscriber) Close() { s.broker.remove(s) }
