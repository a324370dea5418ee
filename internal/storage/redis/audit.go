package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	auditStreamKey = "inventory:audit"

	// auditStreamMaxLen ограничивает рост стрима, обрезка приблизительная.
	auditStreamMaxLen = 10000
)

// auditLogRedis пишет аудит складских операций в Redis Stream.
type auditLogRedis struct {
	client *redis.Client
}

// NewAuditLog возвращает Redis-журнал аудита.
func NewAuditLog(client *redis.Client) domain.AuditLog {
	return &auditLogRedis{client: client}
}

// Record добавляет запись в стрим через XADD.
func (a *auditLogRedis) Record(entry domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	values := map[string]interface{}{
		"transaction_id": entry.TransactionID,
		"action":         entry.Action,
		"at":             entry.At.Format(time.RFC3339Nano),
	}
	for k, v := range entry.Fields {
		values[k] = v
	}

	err := a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStreamKey,
		MaxLen: auditStreamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit entry to redis: %w", err)
	}
	return nil
}

var _ domain.AuditLog = (*auditLogRedis)(nil)
