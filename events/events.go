// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	OrderCreated        = "order.created"
	OrderPaymentUpdated = "order.payment_updated"
	OrderStatusChanged  = "order.status_changed"
)

// Event is the message envelope written to the topic.
type Event struct {
	Type        string      `json:"type"`
	OrderID     uint        `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	OccurredAt  time.Time   `json:"occurredAt"`
	Data        interface{} `json:"data,omitempty"`
}

// Key partitions events per order so consumers see them in order.
func (e Event) Key() string {
	return fmt.Sprintf("%s.%d", e.Type, e.OrderID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher logs events at debug level; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, e Event) error {
	log.Debug().Str("type", e.Type).Uint("order_id", e.OrderID).Msg("event dropped, no broker configured")
	return nil
}

func (NopPublisher) Close() error { return nil }
