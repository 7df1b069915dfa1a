package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
)

func TestKafkaPublisherSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	orderID := uuid.New()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got OrderEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.OrderID != orderID || got.Status != "paid" || got.PrevStatus != "pending" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "foodgram.orders")
	err := p.PublishOrderEvent(context.Background(), OrderEvent{
		OrderID:     orderID,
		OrderNumber: "ORD-20260101-X",
		PrevStatus:  "pending",
		Status:      "paid",
		OccurredAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "foodgram.orders")
	err := p.PublishOrderEvent(context.Background(), OrderEvent{OrderID: uuid.New(), Status: "paid"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
}

func TestNopPublisher(t *testing.T) {
	if err := (Nop{}).PublishOrderEvent(context.Background(), OrderEvent{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
