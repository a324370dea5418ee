package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storebot/internal/health"
	"github.com/vladislavdragonenkov/storebot/internal/version"
)

// Run собирает зависимости, запускает фоновые воркеры и HTTP-сервер
// метрик и health-проверок, затем ждёт отмены ctx и аккуратно
// останавливается.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		deps.CleanupWorker.Run(workerCtx)
	}()

	outboxDone := make(chan struct{})
	if deps.OutboxWorker != nil {
		go func() {
			defer close(outboxDone)
			deps.OutboxWorker.Run(workerCtx)
		}()
	} else {
		close(outboxDone)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, newHealthHandler(deps))

	logger.WithField("metrics_addr", cfg.MetricsAddr).Info("storebot запущен")

	<-ctx.Done()
	logger.Info("получен сигнал остановки")

	stopWorkers()
	waitWithTimeout(workersDone, 5*time.Second, logger, "session cleanup worker")
	waitWithTimeout(outboxDone, 5*time.Second, logger, "outbox worker")
	shutdownHTTP(metricsSrv, logger)

	return ctx.Err()
}

// newHealthHandler регистрирует проверки внешних бэкендов.
func newHealthHandler(deps *Dependencies) *healthcheck.Handler {
	v, _, _ := version.Info()
	handler := healthcheck.NewHandler(v)

	handler.RegisterChecker("stock", healthcheck.NewSimpleChecker("stock", func() error {
		_, err := deps.Queue.Lens()
		return err
	}))

	if deps.redisClient != nil {
		handler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.redisClient.Ping(ctx).Err()
		}))
	}
	if deps.pgStore != nil {
		handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.pgStore.Ping(ctx)
		}))
	}
	return handler
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проб.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

func waitWithTimeout(done <-chan struct{}, timeout time.Duration, logger *log.Entry, name string) {
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warnf("%s не остановился за %s", name, timeout)
	}
}
