package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventTypeOrderQueued = "order.queued"

// OrderQueuedEvent is published for every order that was queued locally, so a
// separate reconciler can replay it against the remote API.
type OrderQueuedEvent struct {
	OrderID         string             `json:"order_id"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []domain.OrderItem `json:"items"`
	Total           string             `json:"total"`
	Status          domain.OrderStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	timeout time.Duration
	writer  messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{timeout: 5 * time.Second, writer: w}
}

func (p *KafkaPublisher) PublishPendingOrder(ctx context.Context, order *domain.PendingOrder) error {
	payload, err := json.Marshal(OrderQueuedEvent{
		OrderID:         order.ID,
		ShippingAddress: order.ShippingAddress,
		Items:           order.Items,
		Total:           order.Total.String(),
		Status:          order.Status,
		CreatedAt:       order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderQueued)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
