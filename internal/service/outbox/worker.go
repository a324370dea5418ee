// Пакет outbox доставляет события из transactional outbox в брокер.
// Запись в outbox атомарна с бизнес-операцией, доставка — at-least-once.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storebot_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storebot_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storebot_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithDLQPublisher включает отправку в DLQ после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlqPublisher = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(w *Worker) { w.batchSize = batchSize }
}

func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) { w.maxAttempts = maxAttempts }
}

func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.retryBaseDelay = delay }
}

// Worker опрашивает outbox и публикует pending-записи в брокер.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	dlqPublisher   domain.OutboxPublisher
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт воркер с разумными значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	return w
}

// Run опрашивает outbox до отмены ctx; первый проход — сразу.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce обрабатывает один батч pending-записей.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}
	if len(batch) == 0 {
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, msg)
	}
	w.observeBacklog()
}

// deliver публикует одну запись с retry; после исчерпания попыток
// запись уходит в DLQ и помечается failed.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			publishAttempts.WithLabelValues("sent").Inc()
			if err := w.repo.MarkSent(msg.ID); err != nil {
				w.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as sent")
			}
			return
		}
		publishAttempts.WithLabelValues("retry_error").Inc()

		if attempt < w.maxAttempts {
			if delay := w.backoff(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
		}
	}

	w.logger.WithError(lastErr).WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
		"attempts":   w.maxAttempts,
	}).Error("outbox publish failed after retries")
	publishAttempts.WithLabelValues("failed").Inc()

	if err := w.sendToDLQ(msg, lastErr); err != nil {
		w.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to publish to DLQ")
		publishAttempts.WithLabelValues("dlq_failed").Inc()
	}
	if err := w.repo.MarkFailed(msg.ID); err != nil {
		w.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as failed")
	}
}

// backoff — экспоненциальная задержка от базовой: base * 2^(attempt-1).
func (w *Worker) backoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}

	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		const maxDelay = time.Duration(1<<63 - 1)
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return delay
}

// sendToDLQ заворачивает запись в диагностический конверт. Исходный
// payload остаётся внутри поля payload, чтобы dlq-reprocess мог его
// восстановить без знания типа события.
func (w *Worker) sendToDLQ(msg domain.OutboxMessage, publishErr error) error {
	if w.dlqPublisher == nil {
		return nil
	}

	diagnostics, err := json.Marshal(map[string]any{
		"outbox_id":        msg.ID,
		"aggregate_type":   msg.AggregateType,
		"aggregate_id":     msg.AggregateID,
		"event_type":       msg.EventType,
		"payload":          json.RawMessage(msg.Payload),
		"publish_error":    publishErr.Error(),
		"dlq_published_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqMsg := msg
	dlqMsg.Payload = diagnostics
	if err := w.dlqPublisher.Publish(dlqMsg); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	if age := time.Since(stats.OldestPendingAt).Seconds(); age > 0 {
		oldestPendingAge.Set(age)
	} else {
		oldestPendingAge.Set(0)
	}
}
