// Package events delivers domain events to a message broker, either
// immediately or through the transactional outbox.
package events

import (
	"context"
	"log/slog"

	"go.jetify.com/typeid/v2"
)

// Message is one payload bound for a broker topic.
type Message struct {
	ID    string // stable id, reused across redelivery attempts
	Topic string
	Key   string // partition/routing hint, the owner id for role updates
	Body  []byte
}

// Broker sends messages to an external transport.
// Send returns the transport's identifier for the delivered message.
type Broker interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NewMessageID returns a K-sortable id with the given prefix, e.g. "evt_01h4...".
// It panics on an invalid prefix, which is a programming error.
func NewMessageID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic("events: invalid id prefix " + prefix + ": " + err.Error())
	}
	return tid.String()
}

// LogBroker writes messages to the structured log instead of a broker.
// Used in development and when no transport is configured.
type LogBroker struct{}

// Send logs the message and reports its own id as the delivery id.
func (LogBroker) Send(ctx context.Context, msg Message) (string, error) {
	slog.InfoContext(ctx, "event_sent",
		"transport", "log",
		"message_id", msg.ID,
		"topic", msg.Topic,
		"key", msg.Key,
		"body", string(msg.Body),
	)
	return msg.ID, nil
}
