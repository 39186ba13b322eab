package middleware

import (
	"context"
	"time"

	"github.com/xraph/funnel/task"
)

// Timeout returns middleware that enforces a per-task execution
// deadline. The context seen by the task body is cancelled after d;
// the body must check its context for the deadline to have any effect,
// funnel never force-aborts running work. A non-positive d makes the
// middleware a pass-through.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *task.Task, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
