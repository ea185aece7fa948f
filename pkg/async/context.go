// Package async runs fire-and-forget work off the request path while keeping
// the request's correlation ID in the logs.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds the request values propagated to a background task.
type TaskContext struct {
	CorrelationID string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext returns a fresh context, detached from the request's
// cancellation, that carries the captured values.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	return ctx
}

// Go runs fn in a goroutine bounded by timeout. Errors and panics are logged
// and never reach the caller.
//
//	async.Go(ctx, "publish security.ip.blocked", 5*time.Second, func(ctx context.Context) error {
//	    return bus.Publish(ctx, subject, event)
//	})
func Go(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context) error) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		taskCtx, cancel := context.WithTimeout(tc.NewContext(), timeout)
		defer cancel()

		if err := fn(taskCtx); err != nil {
			logger.WarnContext(taskCtx, "async task failed",
				zap.String("task", tc.TaskName),
				zap.Duration("duration", time.Since(tc.StartTime)),
				zap.Error(err),
			)
			return
		}
		logger.WithContext(taskCtx).Debug("async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
