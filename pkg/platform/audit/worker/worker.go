package worker

import (
	"context"
	"log/slog"

	audit "mindlink/pkg/platform/audit"
)

// HandlerFunc persists or forwards a single event.
type HandlerFunc func(ctx context.Context, event audit.Event) error

// Worker consumes audit events from a channel and hands them to a handler until the
// channel is closed or ctx is cancelled. A failing event is logged and skipped so one
// bad write cannot stall the trail.
type Worker struct {
	handle HandlerFunc
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(handle HandlerFunc, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{handle: handle, inbox: inbox, logger: logger}
}

// Run blocks until the inbox is drained and closed (returns nil) or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
