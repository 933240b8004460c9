package audit

import (
	"context"
	"log/slog"

	"crowngate/internal/audit/models"
	"crowngate/internal/audit/store"
)

// Sink receives entries after they are persisted, for fan-out to external
// systems.
type Sink interface {
	Publish(ctx context.Context, entry models.Entry) error
}

// Worker drains the audit inbox, persists entries, and fans them out to any
// configured sinks. Store failures are logged and the entry is dropped; the
// worker never stops on a bad entry.
type Worker struct {
	store  store.Store
	logger *slog.Logger
	inbox  <-chan models.Entry
	sinks  []Sink
}

func NewWorker(st store.Store, logger *slog.Logger, inbox <-chan models.Entry, sinks ...Sink) *Worker {
	return &Worker{store: st, logger: logger, inbox: inbox, sinks: sinks}
}

// Run processes entries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			w.process(ctx, entry)
		}
	}
}

func (w *Worker) process(ctx context.Context, entry models.Entry) {
	if err := w.store.Append(ctx, entry); err != nil {
		w.logger.ErrorContext(ctx, "failed to persist audit entry",
			"action", entry.Action.String(),
			"error", err.Error(),
		)
		return
	}
	for _, sink := range w.sinks {
		if err := sink.Publish(ctx, entry); err != nil {
			w.logger.WarnContext(ctx, "audit sink publish failed",
				"action", entry.Action.String(),
				"error", err.Error(),
			)
		}
	}
}
