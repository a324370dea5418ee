package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const queryTimeout = 5 * time.Second

// salesLedgerPostgres хранит журнал продаж в таблице sold_credentials.
// Запись идемпотентна по transaction_id: повторная архивация той же
// транзакции не создаёт дубликат.
type salesLedgerPostgres struct {
	store *Store
	now   func() time.Time
}

// NewSalesLedger возвращает PostgreSQL-журнал продаж.
func NewSalesLedger(store *Store) domain.SalesLedger {
	return &salesLedgerPostgres{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *salesLedgerPostgres) Archive(rec domain.SoldRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if rec.SoldAt.IsZero() {
		rec.SoldAt = l.now()
	}

	_, err := l.store.DB().ExecContext(ctx, `
		INSERT INTO sold_credentials (transaction_id, product_id, order_id, customer_id, credential, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO NOTHING
	`, rec.TransactionID, rec.ProductID, rec.OrderID, rec.CustomerID, rec.Credential, rec.SoldAt)
	if err != nil {
		return fmt.Errorf("insert sold credential: %w", err)
	}
	return nil
}

func (l *salesLedgerPostgres) Report(days int) (domain.SalesReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT product_id, COUNT(*)
		FROM sold_credentials
		WHERE sold_at >= $1
		GROUP BY product_id
	`, l.now().AddDate(0, 0, -days))
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("query sales report: %w", err)
	}
	defer rows.Close()

	report := domain.SalesReport{
		Days:      days,
		ByProduct: make(map[string]int),
	}
	for rows.Next() {
		var (
			productID string
			count     int
		)
		if err := rows.Scan(&productID, &count); err != nil {
			return domain.SalesReport{}, fmt.Errorf("scan sales report row: %w", err)
		}
		report.ByProduct[productID] = count
		report.TotalSales += count
	}
	if err := rows.Err(); err != nil {
		return domain.SalesReport{}, fmt.Errorf("iterate sales report rows: %w", err)
	}
	return report, nil
}

func (l *salesLedgerPostgres) ByCustomer(customerID string, limit int) ([]domain.SoldRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT transaction_id, product_id, order_id, customer_id, credential, sold_at
		FROM sold_credentials
		WHERE customer_id = $1
		ORDER BY sold_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query customer sales: %w", err)
	}
	defer rows.Close()

	records := make([]domain.SoldRecord, 0, limit)
	for rows.Next() {
		var rec domain.SoldRecord
		if err := rows.Scan(&rec.TransactionID, &rec.ProductID, &rec.OrderID,
			&rec.CustomerID, &rec.Credential, &rec.SoldAt); err != nil {
			return nil, fmt.Errorf("scan customer sale row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer sale rows: %w", err)
	}
	return records, nil
}

var _ domain.SalesLedger = (*salesLedgerPostgres)(nil)
