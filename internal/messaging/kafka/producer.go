// Пакет kafka публикует события магазина (продажи, остатки склада)
// во внешний стрим для аналитики и интеграций.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer — синхронный идемпотентный издатель событий магазина.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// syncProducerConfig — конфигурация для exactly-once-ish публикации:
// подтверждение от всех ISR, идемпотентность и один in-flight запрос.
func syncProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к брокерам и возвращает готовый Producer.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	producer, err := sarama.NewSyncProducer(brokers, syncProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// PublishEvent сериализует событие в JSON и отправляет его в topic
// с указанным ключом партиционирования.
func (p *Producer) PublishEvent(topic string, key string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for topic %s: %w", topic, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka send failed")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")
	return nil
}

// Close останавливает producer и сбрасывает буферы.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
