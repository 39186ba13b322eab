package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/funnel/task"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		logger.Debug("task started",
			slog.String("task_name", t.Name()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task failed",
				slog.String("task_name", t.Name()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("task completed",
				slog.String("task_name", t.Name()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
