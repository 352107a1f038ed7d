package core

import (
	"context"
	"time"
)

// Order event types.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published after an order write commits.
type OrderEvent struct {
	Type           string      `json:"type"`
	Order          Order       `json:"order"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// EventPublisher delivers order events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, OrderEvent) error { return nil }

// publish never fails the caller; the write has already committed.
func (s *Service) publish(ctx context.Context, event OrderEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish order event failed", "type", event.Type, "order_id", event.Order.ID, "error", err)
	}
}
