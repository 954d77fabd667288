// Package notify delivers order lifecycle events to whoever listens:
// a RabbitMQ fan-out exchange, a Kafka topic, or an operations mailbox.
// Publishing is best-effort; callers never wait on delivery.
package notify

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventOrderCreated       EventType = "ORDER_CREATED"
	EventOrderStatusChanged EventType = "ORDER_STATUS_CHANGED"
	EventSubOrderCreated    EventType = "SUB_ORDER_CREATED"
	EventSubOrderUpdated    EventType = "SUB_ORDER_UPDATED"
	EventPartnerUpdated     EventType = "PARTNER_UPDATED"
)

// Event is the message body published for every lifecycle change.
type Event struct {
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	SubOrderID string    `json:"sub_order_id,omitempty"`
	PartnerID  string    `json:"partner_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends an event to one destination.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event. Used when no destination is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
