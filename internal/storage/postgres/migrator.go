package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsGlob   = "sql/migrations/*.sql"
	migrationLockKey = int64(73051184)

	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrateUp применяет все недостающие up-миграции под advisory-lock,
// конкурентные запуски безопасны.
func (s *Store) MigrateUp(ctx context.Context) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		migrations, err := loadMigrationsFromFS(migrationsFS)
		if err != nil {
			return err
		}
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}
			if err := execInTx(ctx, conn, m.UpSQL, `
				INSERT INTO schema_migrations (version, name, applied_at)
				VALUES ($1, $2, NOW())
			`, m.Version, m.Name); err != nil {
				return fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
			}
		}
		return nil
	})
}

// MigrateDown откатывает последнюю применённую миграцию.
func (s *Store) MigrateDown(ctx context.Context) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		migrations, err := loadMigrationsFromFS(migrationsFS)
		if err != nil {
			return err
		}

		var last int64
		err = conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&last)
		if err != nil {
			return fmt.Errorf("query last migration: %w", err)
		}
		if last == 0 {
			return nil
		}

		for _, m := range migrations {
			if m.Version != last {
				continue
			}
			if err := execInTx(ctx, conn, m.DownSQL,
				`DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
				return fmt.Errorf("rollback migration %d_%s: %w", m.Version, m.Name, err)
			}
			return nil
		}
		return fmt.Errorf("cannot rollback unknown migration version %d", last)
	})
}

// MigrationStatus возвращает текущую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn)
}

// execInTx выполняет тело миграции и запись в schema_migrations
// одной транзакцией.
func execInTx(ctx context.Context, conn *sql.Conn, body, record string, args ...interface{}) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// parsedFile — одна разобранная пара "имя файла + тело".
type parsedFile struct {
	version   int64
	name      string
	direction string
	body      string
}

func parseMigrationFile(fsys fs.FS, path string) (parsedFile, error) {
	base := filepath.Base(path)
	matches := migrationFilePattern.FindStringSubmatch(base)
	if len(matches) != 4 {
		return parsedFile{}, fmt.Errorf("invalid migration file name: %s", base)
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return parsedFile{}, fmt.Errorf("parse migration version from %s: %w", base, err)
	}

	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return parsedFile{}, fmt.Errorf("read migration file %s: %w", path, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return parsedFile{}, fmt.Errorf("migration file is empty: %s", base)
	}

	return parsedFile{
		version:   version,
		name:      matches[2],
		direction: matches[3],
		body:      body,
	}, nil
}

// loadMigrationsFromFS собирает пары up/down файлов в упорядоченный
// список. Миграция без одной из сторон — ошибка.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		parsed, err := parseMigrationFile(fsys, file)
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[parsed.version]
		if !ok {
			m = &migration{Version: parsed.version, Name: parsed.name}
			byVersion[parsed.version] = m
		} else if m.Name != parsed.name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", parsed.version, m.Name, parsed.name)
		}

		switch parsed.direction {
		case "up":
			if m.UpSQL != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", parsed.version)
			}
			m.UpSQL = parsed.body
		default:
			if m.DownSQL != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", parsed.version)
			}
			m.DownSQL = parsed.body
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
