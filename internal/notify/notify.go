// Package notify delivers user-facing notifications. Delivery is best effort
// and asynchronous; a lost notification never fails the operation that
// triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a single notification to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes notifications to the structured log. Stands in for a real
// mail gateway in development and tests.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "notification sent",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// EnrollmentWelcome builds the message sent when a citizen is enrolled.
func EnrollmentWelcome(to, citizenName, kingdomName string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome to %s", kingdomName),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour enrollment in %s has been approved. Welcome!\n",
			citizenName, kingdomName,
		),
	}
}

// TestCompleted builds the message sent when a screening test is finished.
func TestCompleted(to, name, testTitle string, score, total int, percentage float64) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your results for %s", testTitle),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYou completed %s with a score of %d/%d (%.2f%%).\n",
			name, testTitle, score, total, percentage,
		),
	}
}
