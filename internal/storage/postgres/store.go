// Пакет postgres хранит журнал продаж в PostgreSQL. Подключение идёт
// через database/sql поверх драйвера pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

// Store — подключение к базе журнала продаж.
type Store struct {
	db *sql.DB
}

// Open подключается к базе и проверяет, что она отвечает. Пул держим
// небольшим: единственный писатель — обработчик /approve, читатели —
// редкие админские отчёты.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// DB отдаёт сырое подключение для миграций и интеграционных тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы с собственным таймаутом.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close закрывает пул подключений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
