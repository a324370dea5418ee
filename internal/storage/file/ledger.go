package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// salesLedgerFile — файловый журнал продаж: один JSON-файл на запись
// в каталоге sold/. Журнал append-only, записи никогда не изменяются.
type salesLedgerFile struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewSalesLedger создаёт файловый журнал продаж в каталоге dir.
func NewSalesLedger(dir string) (domain.SalesLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &salesLedgerFile{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Archive сохраняет запись о продаже. Имя файла содержит метку времени
// и идентификатор транзакции, поэтому коллизии исключены.
func (l *salesLedgerFile) Archive(rec domain.SoldRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.SoldAt.IsZero() {
		rec.SoldAt = l.now()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sold record: %w", err)
	}

	name := fmt.Sprintf("%d_%s.json", rec.SoldAt.UnixMilli(), rec.TransactionID)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write sold record: %w", err)
	}
	return nil
}

// readAll читает все записи журнала. Повреждённые файлы пропускаются,
// чтобы один битый JSON не ломал отчёты целиком.
func (l *salesLedgerFile) readAll() ([]domain.SoldRecord, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read ledger dir: %w", err)
	}

	records := make([]domain.SoldRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read sold record: %w", err)
		}
		var rec domain.SoldRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Report агрегирует продажи за последние days дней.
func (l *salesLedgerFile) Report(days int) (domain.SalesReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll()
	if err != nil {
		return domain.SalesReport{}, err
	}

	cutoff := l.now().AddDate(0, 0, -days)
	report := domain.SalesReport{
		Days:      days,
		ByProduct: make(map[string]int),
	}
	for _, rec := range records {
		if rec.SoldAt.Before(cutoff) {
			continue
		}
		report.TotalSales++
		report.ByProduct[rec.ProductID]++
	}
	return report, nil
}

// ByCustomer возвращает продажи клиента, новые раньше старых.
func (l *salesLedgerFile) ByCustomer(customerID string, limit int) ([]domain.SoldRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll()
	if err != nil {
		return nil, err
	}

	matched := make([]domain.SoldRecord, 0, limit)
	for _, rec := range records {
		if rec.CustomerID == customerID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SoldAt.After(matched[j].SoldAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

var _ domain.SalesLedger = (*salesLedgerFile)(nil)
