package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// EventType определяет тип события в стриме магазина.
type EventType string

// Значения совпадают со словарём outbox-событий в internal/domain:
// outbox прокидывает EventType как есть, потребители видят одни имена.
const (
	EventTypeSaleCompleted = EventType(domain.EventSaleCompleted)
	EventTypeDeliverySent  = EventType(domain.EventDeliverySent)
	EventTypeStockAdded    = EventType(domain.EventStockAdded)
	EventTypeStockLow      = EventType(domain.EventStockLow)
)

// Topics для Kafka
const (
	TopicStoreEvents     = "storebot.store.events"
	TopicDeadLetterQueue = "storebot.dlq" // Dead Letter Queue для failed messages
)

// StoreEvent представляет событие магазина
type StoreEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id,omitempty"`
	ProductID  string                 `json:"product_id,omitempty"`
	CustomerID string                 `json:"customer_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewSaleEvent создает событие завершённой продажи
func NewSaleEvent(orderID, customerID string, metadata map[string]interface{}) *StoreEvent {
	return &StoreEvent{
		EventType:  EventTypeSaleCompleted,
		OrderID:    orderID,
		CustomerID: customerID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewStockEvent создает событие изменения остатка
func NewStockEvent(eventType EventType, productID string, metadata map[string]interface{}) *StoreEvent {
	return &StoreEvent{
		EventType: eventType,
		ProductID: productID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
