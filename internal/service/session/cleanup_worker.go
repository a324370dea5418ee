package session

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/metrics"
)

const defaultSweepInterval = 10 * time.Minute

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storebot_session_cleanup_runs_total",
		Help: "Total number of session cleanup runs grouped by result.",
	}, []string{"result"})
	cleanupRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storebot_session_cleanup_removed_total",
		Help: "Total number of removed expired sessions.",
	})
	cleanupLastRemoved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storebot_session_cleanup_last_removed",
		Help: "Number of sessions removed during the last cleanup run.",
	})
)

// Store — подмножество хранилища сессий, нужное воркеру.
type Store interface {
	CleanupExpired() (int, error)
	ActiveCustomerIDs() ([]string, error)
}

// CleanupOptions задаёт параметры воркера очистки сессий.
type CleanupOptions struct {
	Logger     *log.Entry
	Interval   time.Duration
	BotMetrics *metrics.BotMetrics
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами очистки.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBotMetrics задаёт метрики для gauge активных сессий.
func WithBotMetrics(botMetrics *metrics.BotMetrics) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BotMetrics = botMetrics
	}
}

// CleanupWorker периодически удаляет сессии, неактивные дольше TTL.
type CleanupWorker struct {
	store      Store
	logger     *log.Entry
	interval   time.Duration
	botMetrics *metrics.BotMetrics
}

// NewCleanupWorker создаёт воркер очистки сессий.
func NewCleanupWorker(store Store, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval: defaultSweepInterval,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-cleanup-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &CleanupWorker{
		store:      store,
		logger:     logger,
		interval:   opts.Interval,
		botMetrics: opts.BotMetrics,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.store == nil {
		w.logger.Warn("session cleanup worker is disabled: store is nil")
		return
	}

	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход очистки и обновляет метрики.
func (w *CleanupWorker) Sweep(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	removed, err := w.store.CleanupExpired()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("session cleanup run failed")
		return
	}

	cleanupRunsTotal.WithLabelValues("ok").Inc()
	cleanupLastRemoved.Set(float64(removed))
	if removed > 0 {
		cleanupRemovedTotal.Add(float64(removed))
		w.logger.WithField("removed", removed).Info("expired sessions removed")
	}

	if w.botMetrics == nil {
		return
	}
	active, err := w.store.ActiveCustomerIDs()
	if err != nil {
		w.logger.WithError(err).Warn("active sessions count failed")
		return
	}
	w.botMetrics.SetActiveSessions(len(active))
}
