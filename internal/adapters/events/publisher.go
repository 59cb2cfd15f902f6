package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefinder/internal/domain/outbox"
	"storefinder/internal/domain/ownership"
)

// DirectPublisher sends role update events to the broker synchronously.
// Broker errors are returned to the caller unchanged.
type DirectPublisher struct {
	Broker Broker
}

// Publish encodes event and sends it on topic.
func (p DirectPublisher) Publish(ctx context.Context, topic string, event ownership.RoleUpdateEvent) error {
	body, err := event.Encode()
	if err != nil {
		return err
	}
	id, err := p.Broker.Send(ctx, Message{
		ID:    NewMessageID("evt"),
		Topic: topic,
		Key:   event.UserID,
		Body:  body,
	})
	if err != nil {
		return err
	}
	slog.Debug("event_published", "topic", topic, "user_id", event.UserID, "delivery_id", id)
	return nil
}

// OutboxWriter is the slice of the outbox store the publisher needs.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// OutboxPublisher records role update events in the outbox; the relay
// delivers them later, retrying with backoff until the broker accepts them.
type OutboxPublisher struct {
	Store       OutboxWriter
	MaxAttempts int
	Now         func() time.Time
}

// Publish stores a pending outbox entry for the event.
// POST: Entry persisted with status pending, or the store error returned
func (p OutboxPublisher) Publish(ctx context.Context, topic string, event ownership.RoleUpdateEvent) error {
	body, err := event.Encode()
	if err != nil {
		return err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	entry := outbox.Entry{
		ID:          NewMessageID("obx"),
		ActionType:  outbox.ActionTypeRoleUpdate,
		Topic:       topic,
		Key:         event.UserID,
		Payload:     string(body),
		Status:      outbox.StatusPending,
		MaxAttempts: p.MaxAttempts,
		CreatedAt:   now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("outbox entry: %w", err)
	}
	if err := p.Store.Save(ctx, entry); err != nil {
		return err
	}
	slog.Debug("event_enqueued", "topic", topic, "user_id", event.UserID, "entry_id", entry.ID)
	return nil
}
