// Команда dlq-reprocess перечитывает dead letter queue и возвращает
// события обратно в основной topic после устранения причины сбоя.
//
// По умолчанию работает в dry-run режиме: показывает, что было бы
// отправлено. Для реальной публикации передайте -execute.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
)

type replayConfig struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// dlqEnvelope — конверт сообщения в DLQ-топике. Поле Payload содержит
// диагностическую обёртку outbox-воркера с исходным payload внутри.
type dlqEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type dlqDiagnostics struct {
	OutboxID     string          `json:"outbox_id"`
	Payload      json.RawMessage `json:"payload"`
	PublishError string          `json:"publish_error"`
}

// replayMessage — событие, восстановленное из DLQ для повторной отправки.
type replayMessage struct {
	Key          string
	EventType    string
	Payload      json.RawMessage
	PublishError string
}

func main() {
	cfg := parseFlags()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runReplay(ctx, cfg); err != nil {
		log.WithError(err).Fatal("повторная обработка DLQ завершилась с ошибкой")
	}
}

func parseFlags() replayConfig {
	brokers := flag.String("brokers", "localhost:9092", "адреса Kafka-брокеров через запятую")
	sourceTopic := flag.String("source-topic", kafka.TopicDeadLetterQueue, "topic, из которого читаем DLQ")
	targetTopic := flag.String("target-topic", kafka.TopicStoreEvents, "topic для повторной публикации")
	limit := flag.Int("limit", 0, "максимум сообщений за запуск (0 — без ограничения)")
	execute := flag.Bool("execute", false, "реально публиковать; без флага только dry-run")
	idleTimeout := flag.Duration("idle-timeout", 5*time.Second, "остановка после паузы без новых сообщений")
	flag.Parse()

	return replayConfig{
		brokers:     strings.Split(*brokers, ","),
		sourceTopic: *sourceTopic,
		targetTopic: *targetTopic,
		limit:       *limit,
		execute:     *execute,
		idleTimeout: *idleTimeout,
	}
}

func runReplay(ctx context.Context, cfg replayConfig) error {
	consumerCfg := sarama.NewConfig()
	consumerCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumer(cfg.brokers, consumerCfg)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer consumer.Close()

	var producer *kafka.Producer
	if cfg.execute {
		producer, err = kafka.NewProducer(cfg.brokers)
		if err != nil {
			return fmt.Errorf("create producer: %w", err)
		}
		defer producer.Close()
	}

	partitions, err := consumer.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("list partitions of %s: %w", cfg.sourceTopic, err)
	}

	var replayed, skipped int
	for _, partition := range partitions {
		if ctx.Err() != nil {
			break
		}
		if cfg.limit > 0 && replayed >= cfg.limit {
			break
		}
		r, s, err := drainPartition(ctx, consumer, producer, cfg, partition, replayed)
		replayed += r
		skipped += s
		if err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"replayed": replayed,
		"skipped":  skipped,
		"dry_run":  !cfg.execute,
	}).Info("повторная обработка DLQ завершена")
	return nil
}

// drainPartition читает одну партицию до idle-timeout или лимита.
func drainPartition(ctx context.Context, consumer sarama.Consumer, producer *kafka.Producer, cfg replayConfig, partition int32, alreadyReplayed int) (replayed, skipped int, err error) {
	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer pc.Close()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for {
		if cfg.limit > 0 && alreadyReplayed+replayed >= cfg.limit {
			return replayed, skipped, nil
		}
		select {
		case <-ctx.Done():
			return replayed, skipped, nil
		case <-idle.C:
			return replayed, skipped, nil
		case msg, ok := <-pc.Messages():
			if !ok {
				return replayed, skipped, nil
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(cfg.idleTimeout)

			replay, extractErr := extractReplayMessage(msg.Value)
			if extractErr != nil {
				skipped++
				log.WithError(extractErr).WithFields(log.Fields{
					"partition": partition,
					"offset":    msg.Offset,
				}).Warn("сообщение DLQ пропущено")
				continue
			}

			logger := log.WithFields(log.Fields{
				"key":            replay.Key,
				"event_type":     replay.EventType,
				"original_error": replay.PublishError,
			})
			if !cfg.execute {
				logger.Info("dry-run: сообщение было бы опубликовано")
				replayed++
				continue
			}
			if err := producer.PublishEvent(cfg.targetTopic, replay.Key, json.RawMessage(replay.Payload)); err != nil {
				return replayed, skipped, fmt.Errorf("republish offset %d: %w", msg.Offset, err)
			}
			logger.Info("сообщение возвращено в основной topic")
			replayed++
		}
	}
}

// extractReplayMessage разворачивает DLQ-конверт до исходного события.
func extractReplayMessage(value []byte) (replayMessage, error) {
	var envelope dlqEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return replayMessage{}, fmt.Errorf("unmarshal dlq envelope: %w", err)
	}
	if envelope.EventType == "" {
		return replayMessage{}, fmt.Errorf("dlq envelope has no event_type")
	}

	var diag dlqDiagnostics
	if err := json.Unmarshal(envelope.Payload, &diag); err != nil {
		return replayMessage{}, fmt.Errorf("unmarshal dlq diagnostics: %w", err)
	}
	if len(diag.Payload) == 0 {
		return replayMessage{}, fmt.Errorf("dlq diagnostics carry no original payload")
	}

	key := envelope.AggregateID
	if key == "" {
		key = envelope.ID
	}
	return replayMessage{
		Key:          key,
		EventType:    envelope.EventType,
		Payload:      diag.Payload,
		PublishError: diag.PublishError,
	}, nil
}
