// Package events publishes order lifecycle events for downstream consumers
// such as analytics and the restaurant display.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderEvent is emitted after an order status change has been committed.
type OrderEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	PartnerID   *uuid.UUID `json:"delivery_partner_id,omitempty"`
	PrevStatus  string     `json:"prev_status"`
	Status      string     `json:"status"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (Nop) Close() error { return nil }

// KafkaPublisher writes order events to a single topic keyed by order id, so
// events of one order stay in one partition and keep their order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true // required by SyncProducer
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	zap.L().Info("kafka producer ready", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, e OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.OrderID.String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte("order.status_changed")},
		},
	})
	if err != nil {
		return fmt.Errorf("send order event to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
