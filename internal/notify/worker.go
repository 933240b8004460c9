package notify

import (
	"context"
	"log/slog"
)

// Dispatcher queues messages for background delivery. Enqueue never blocks;
// when the queue is full the message is dropped with a log line.
type Dispatcher struct {
	logger *slog.Logger
	inbox  chan Message
}

func NewDispatcher(logger *slog.Logger, buffer int) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		inbox:  make(chan Message, buffer),
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) {
	select {
	case d.inbox <- msg:
	default:
		d.logger.WarnContext(ctx, "notification queue full, dropping message",
			"to", msg.To,
			"subject", msg.Subject,
		)
	}
}

// Run drains the queue through the sender until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, sender Sender) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			if err := sender.Send(ctx, msg); err != nil {
				d.logger.WarnContext(ctx, "failed to send notification",
					"to", msg.To,
					"subject", msg.Subject,
					"error", err.Error(),
				)
			}
		}
	}
}
