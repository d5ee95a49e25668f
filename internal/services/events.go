// internal/services/events.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

// OrderEvent is published on every order status change.
type OrderEvent struct {
	OrderID        string             `json:"order_id"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	Total          decimal.Decimal    `json:"total"`
	Currency       string             `json:"currency"`
	PromoCode      string             `json:"promo_code,omitempty"`
	CustomerEmail  string             `json:"customer_email,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func newOrderEvent(order *models.Order, previous models.OrderStatus) OrderEvent {
	return OrderEvent{
		OrderID:        order.ID.String(),
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		Currency:       order.Currency,
		PromoCode:      order.PromoCode,
		CustomerEmail:  order.CustomerEmail,
		OccurredAt:     time.Now().UTC(),
	}
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// PublishOrderEvent keys messages by order id so one order's events stay
// ordered within a partition.
func (p *KafkaEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order." + string(event.Status))},
		},
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// LogEventPublisher is used when no broker is configured.
type LogEventPublisher struct{}

func (LogEventPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	logrus.WithFields(logrus.Fields{
		"order_id": event.OrderID,
		"status":   event.Status,
		"previous": event.PreviousStatus,
	}).Debug("Order event")
	return nil
}

func (LogEventPublisher) Close() error { return nil }
