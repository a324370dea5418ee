package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndSucceed()

	event := NewSaleEvent("ORD-1700000000000", "628111", map[string]interface{}{
		"items": 2,
	})

	err := producer.PublishEvent(TopicStoreEvents, "ORD-1700000000000", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewStockEvent(EventTypeStockLow, "netflix", nil)

	err := producer.PublishEvent(TopicStoreEvents, "netflix", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewSaleEvent(t *testing.T) {
	event := NewSaleEvent("ORD-1", "628111", map[string]interface{}{"items": 1})

	if event.EventType != EventTypeSaleCompleted {
		t.Errorf("expected event type %s, got %s", EventTypeSaleCompleted, event.EventType)
	}
	if event.OrderID != "ORD-1" {
		t.Errorf("expected order id ORD-1, got %s", event.OrderID)
	}
	if event.CustomerID != "628111" {
		t.Errorf("expected customer id 628111, got %s", event.CustomerID)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewStockEvent(t *testing.T) {
	event := NewStockEvent(EventTypeStockLow, "netflix", map[string]interface{}{"remaining": 1})

	if event.EventType != EventTypeStockLow {
		t.Errorf("expected event type %s, got %s", EventTypeStockLow, event.EventType)
	}
	if event.ProductID != "netflix" {
		t.Errorf("expected product id netflix, got %s", event.ProductID)
	}
	if event.Metadata["remaining"] != 1 {
		t.Error("metadata not set correctly")
	}
}
