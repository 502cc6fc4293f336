package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-consume/logger"
)

// LogAndSkip logs the error and advances past the record
func LogAndSkip(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"error translating record, skipping",
				"error", ec.Error,
				"key", ec.Record.Key,
				"topic", ec.Record.Topic,
				"offset", ec.Record.Offset,
				"partition", ec.Record.Partition,
				"attempt", ec.Attempt,
			)
			return ActionSkip{}
		},
	)
}

// LogAndFail logs the error and finishes the read as failed
func LogAndFail(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"error translating record, failing read",
				"error", ec.Error,
				"key", ec.Record.Key,
				"topic", ec.Record.Topic,
				"offset", ec.Record.Offset,
				"partition", ec.Record.Partition,
				"attempt", ec.Attempt,
			)
			return ActionFail{}
		},
	)
}

// WithMaxAttempts wraps a handler with retry logic
// When the max attempts is reached, the fallback handler is called
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			if ec.Attempt < maxAttempts {
				return ActionRetry{}
			}

			return fallback.Handle(ctx, ec)
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)

			l.Log(
				level,
				"Error handler decision",
				"action", action.Type().String(),
				"error", ec.Error,
				"key", ec.Record.Key,
				"topic", ec.Record.Topic,
				"offset", ec.Record.Offset,
				"partition", ec.Record.Partition,
				"attempt", ec.Attempt,
			)
			return action
		},
	)
}
