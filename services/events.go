package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yeremiapane/delivery-app/lifecycle"
)

// Broadcaster pushes realtime frames to channel subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, channel, event string, data interface{}) error
}

// Order event types on the lifecycle stream.
const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent is one record of the order lifecycle stream.
type OrderEvent struct {
	Type       string           `json:"type"`
	OrderID    string           `json:"order_id"`
	Status     lifecycle.Status `json:"status"`
	Previous   lifecycle.Status `json:"previous,omitempty"`
	Actor      lifecycle.Actor  `json:"actor"`
	ActorID    uint             `json:"actor_id,omitempty"`
	Total      float64          `json:"total,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// EventPublisher appends order events to the lifecycle stream.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent) error
}

// KafkaEventPublisher writes order events keyed by order id so one order's
// events stay ordered within a partition.
type KafkaEventPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaEventPublisher(writer *kafka.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{Writer: writer}
}

func (p *KafkaEventPublisher) PublishOrderEvent(ctx context.Context, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.Writer.Close()
}

// NopEventPublisher drops events. Used when no broker is configured.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(context.Context, string, string, interface{}) error { return nil }
