package types

import (
	"context"
	"time"
)

// Message represents one inbound chat message.
type Message struct {
	ID         string
	ChatID     string
	UserID     string
	Text       string
	RequestID  string
	ReceivedAt time.Time
}

// Reply is what the conversation core hands back to the presentation layer.
// Markdown and Keyboard are rendering hints; the transport decides what to do
// with them.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard [][]string
}

// Channel is a bidirectional chat transport (telegram, cli).
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, chatID string, reply Reply) error
	ID() string
}

// Clock abstracts "now" so parsing and dispatch are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Notifier pushes a message to the fixed owner chat. Failures are
// non-fatal to the caller.
type Notifier interface {
	Notify(ctx context.Context, reply Reply) error
}
