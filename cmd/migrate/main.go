// Команда migrate управляет схемой Postgres для журнала продаж.
//
// Использование:
//
//	migrate -direction=up -dsn="postgres://..."
//	migrate -direction=down
//	migrate -direction=status
//
// DSN берётся из флага -dsn или переменной STOREBOT_POSTGRES_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/storage/postgres"
)

func main() {
	direction := flag.String("direction", "up", "направление миграции: up, down или status")
	dsn := flag.String("dsn", "", "строка подключения к Postgres (по умолчанию STOREBOT_POSTGRES_DSN)")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	connStr := *dsn
	if connStr == "" {
		connStr = os.Getenv("STOREBOT_POSTGRES_DSN")
	}
	if connStr == "" {
		fail("не задан DSN: используйте -dsn или STOREBOT_POSTGRES_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, connStr)
	if err != nil {
		fail("не удалось подключиться к базе: %v", err)
	}
	defer store.Close()

	switch *direction {
	case "up":
		if err := store.MigrateUp(ctx); err != nil {
			fail("миграция вверх не удалась: %v", err)
		}
		log.Info("миграции применены")
	case "down":
		// откатывает только последнюю применённую миграцию
		if err := store.MigrateDown(ctx); err != nil {
			fail("откат миграции не удался: %v", err)
		}
		log.Info("последняя миграция откатана")
	case "status":
		version, applied, err := store.MigrationStatus(ctx)
		if err != nil {
			fail("не удалось получить статус миграций: %v", err)
		}
		log.WithFields(log.Fields{
			"current_version": version,
			"applied":         applied,
		}).Info("статус миграций")
	default:
		fail("неизвестное направление %q: ожидается up, down или status", *direction)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "migrate: "+format+"\n", args...)
	os.Exit(1)
}
