package domain

import "time"

// SoldRecord — запись журнала продаж, создаётся ровно один раз
// на каждую успешно выданную единицу товара. Журнал append-only.
type SoldRecord struct {
	TransactionID string    `json:"transaction_id"`
	ProductID     string    `json:"product_id"`
	OrderID       string    `json:"order_id"`
	CustomerID    string    `json:"customer_id"`
	Credential    string    `json:"credential"`
	SoldAt        time.Time `json:"sold_at"`
}

// SalesReport — агрегат журнала продаж за скользящее окно в днях.
type SalesReport struct {
	Days       int
	TotalSales int
	ByProduct  map[string]int
}
