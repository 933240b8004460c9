package notify

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Message
}

func (s *captureSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message{}, s.sent...)
}

func Test_Dispatcher_DeliversQueuedMessages(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	dispatcher := NewDispatcher(logger, 4)
	sender := &captureSender{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = dispatcher.Run(ctx, sender)
		close(done)
	}()

	dispatcher.Enqueue(ctx, EnrollmentWelcome("citizen@example.com", "Ada", "Northland"))

	require.Eventually(t, func() bool {
		return len(sender.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	msg := sender.snapshot()[0]
	assert.Equal(t, "citizen@example.com", msg.To)
	assert.Equal(t, "Welcome to Northland", msg.Subject)
	assert.Contains(t, msg.Body, "Ada")
}

func Test_Dispatcher_DropsWhenQueueFull(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	dispatcher := NewDispatcher(logger, 1)

	// No worker running; second enqueue must not block.
	dispatcher.Enqueue(context.Background(), Message{To: "a@example.com"})
	dispatcher.Enqueue(context.Background(), Message{To: "b@example.com"})
}

func Test_TestCompleted_FormatsScore(t *testing.T) {
	msg := TestCompleted("c@example.com", "Ada", "Civics Basics", 2, 3, 66.67)
	assert.Equal(t, "Your results for Civics Basics", msg.Subject)
	assert.Contains(t, msg.Body, "2/3")
	assert.Contains(t, msg.Body, "66.67%")
}
