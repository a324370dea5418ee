package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// outboxEnvelope — wire-формат события в topic. Внешние консьюмеры
// полагаются на эти имена полей, менять их нельзя без версионирования.
type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// topicPublisher отправляет outbox-сообщения в один фиксированный topic.
type topicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher для transactional outbox.
// Пустой topic означает основной стрим событий магазина.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicStoreEvents
	}
	return &topicPublisher{producer: producer, topic: topic}
}

func (p *topicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	// ключ партиционирования: агрегат, иначе id записи outbox
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishEvent(p.topic, key, outboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	})
}

var _ domain.OutboxPublisher = (*topicPublisher)(nil)
