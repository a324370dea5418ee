package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/app"
	"github.com/vladislavdragonenkov/storebot/internal/version"
)

// setupLogger настраивает формат и уровень логирования.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if level, err := log.ParseLevel(os.Getenv("STOREBOT_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
}

func main() {
	// .env опционален, в контейнере конфигурация приходит из окружения
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}
	setupLogger()

	cfg := app.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":      version.String(),
		"metrics_addr": cfg.MetricsAddr,
		"data_dir":     cfg.DataDir,
		"admins":       len(cfg.AdminIDs),
	}).Info("запускаем storebot")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storebot остановлен")
}
