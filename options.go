package funnel

import (
	"log/slog"

	"github.com/xraph/funnel/ext"
	"github.com/xraph/funnel/middleware"
	"github.com/xraph/funnel/queue"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithConfig replaces the whole configuration. Apply it before options
// that override individual fields.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) error {
		d.config = cfg
		return nil
	}
}

// WithConcurrency sets the maximum number of concurrently active
// worker activations.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		d.config.Concurrency = n
		return nil
	}
}

// WithMaxBacklog sets the backlog bound at which Submit blocks.
func WithMaxBacklog(n int) Option {
	return func(d *Dispatcher) error {
		d.config.MaxBacklog = n
		return nil
	}
}

// WithRateLimit caps sustained admissions per second with bursts up to
// burst. Zero limit disables rate limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(d *Dispatcher) error {
		d.config.RateLimit = limit
		d.config.RateBurst = burst
		return nil
	}
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithSubstrate sets the worker-pool substrate tasks execute on.
// The default spawns one goroutine per worker activation.
func WithSubstrate(s queue.Substrate) Option {
	return func(d *Dispatcher) error {
		d.substrate = s
		return nil
	}
}

// WithMiddleware appends middleware applied around every task
// execution, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) error {
		d.mws = append(d.mws, mws...)
		return nil
	}
}

// WithExtensions sets the extension registry. Without this option the
// dispatcher creates an empty registry reachable via Extensions.
func WithExtensions(r *ext.Registry) Option {
	return func(d *Dispatcher) error {
		d.extensions = r
		return nil
	}
}
