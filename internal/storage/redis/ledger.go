package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	salesDayKeyPrefix      = "sales:"
	salesCustomerKeyPrefix = "sales:customer:"

	// retentionDays — срок хранения агрегатов и истории покупок.
	retentionDays = 90
)

// salesLedgerRedis хранит дневные агрегаты в hash-ключах
// `sales:<YYYY-MM-DD>` и историю покупок клиента в списке
// `sales:customer:<id>`. Ключи живут retentionDays и удаляются Redis-ом.
type salesLedgerRedis struct {
	client *redis.Client
	now    func() time.Time
}

// NewSalesLedger возвращает Redis-журнал продаж.
func NewSalesLedger(client *redis.Client) domain.SalesLedger {
	return &salesLedgerRedis{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *salesLedgerRedis) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func dayKey(t time.Time) string {
	return salesDayKeyPrefix + t.UTC().Format("2006-01-02")
}

// Archive инкрементирует дневной агрегат и дописывает запись
// в историю покупок клиента.
func (l *salesLedgerRedis) Archive(rec domain.SoldRecord) error {
	ctx, cancel := l.opCtx()
	defer cancel()

	if rec.SoldAt.IsZero() {
		rec.SoldAt = l.now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal sold record: %w", err)
	}

	day := dayKey(rec.SoldAt)
	customerKey := salesCustomerKeyPrefix + rec.CustomerID
	retention := retentionDays * 24 * time.Hour

	pipe := l.client.Pipeline()
	pipe.HIncrBy(ctx, day, rec.ProductID, 1)
	pipe.Expire(ctx, day, retention)
	pipe.LPush(ctx, customerKey, data)
	pipe.Expire(ctx, customerKey, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive sale in redis: %w", err)
	}
	return nil
}

// Report суммирует дневные агрегаты за последние days дней.
func (l *salesLedgerRedis) Report(days int) (domain.SalesReport, error) {
	ctx, cancel := l.opCtx()
	defer cancel()

	report := domain.SalesReport{
		Days:      days,
		ByProduct: make(map[string]int),
	}

	now := l.now()
	for i := 0; i < days; i++ {
		day, err := l.client.HGetAll(ctx, dayKey(now.AddDate(0, 0, -i))).Result()
		if err != nil {
			return domain.SalesReport{}, fmt.Errorf("failed to read daily sales from redis: %w", err)
		}
		for productID, raw := range day {
			count, err := strconv.Atoi(raw)
			if err != nil {
				return domain.SalesReport{}, fmt.Errorf("failed to parse sales counter: %w", err)
			}
			report.ByProduct[productID] += count
			report.TotalSales += count
		}
	}
	return report, nil
}

// ByCustomer возвращает последние покупки клиента, новые раньше старых.
func (l *salesLedgerRedis) ByCustomer(customerID string, limit int) ([]domain.SoldRecord, error) {
	ctx, cancel := l.opCtx()
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	raw, err := l.client.LRange(ctx, salesCustomerKeyPrefix+customerID, 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read customer sales from redis: %w", err)
	}

	records := make([]domain.SoldRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.SoldRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sold record from redis: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

var _ domain.SalesLedger = (*salesLedgerRedis)(nil)
