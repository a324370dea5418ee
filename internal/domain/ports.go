package domain

import (
	"context"
	"time"
)

// SessionStore — хранилище сессий клиентов. Get создаёт сессию лениво
// и обновляет lastActivity. Мутаторы работают с гранулярностью группы
// полей: конкурентное обновление разных групп одной сессии не должно
// терять изменения друг друга.
type SessionStore interface {
	Get(customerID string) (Session, error)
	SetStep(customerID string, step Step) error
	AppendCartLine(customerID string, line CartLine) error
	// ClearCart очищает корзину и сбрасывает промо-поля сессии.
	ClearCart(customerID string) error
	SetOrderID(customerID, orderID string) error
	SetPaymentMethod(customerID string, method PaymentMethod, invoiceID string) error
	SetQRISInvoice(customerID, invoiceID string, amountUSD int64, issuedAt time.Time) error
	SetPaymentProof(customerID, path string) error
	SetPromo(customerID, code string, discountPercent int) error
	SetBulkAddProduct(customerID, productID string) error
	FindCustomerByOrderID(orderID string) (string, error)
	ActiveCustomerIDs() ([]string, error)
	// CleanupExpired удаляет сессии, неактивные дольше окна TTL,
	// и возвращает число удалённых.
	CleanupExpired() (int, error)
}

// CredentialQueue — FIFO-очередь учётных данных по товарам.
// Pop обязан быть атомарным: два конкурентных вызова для одного
// товара никогда не получают одну и ту же строку.
type CredentialQueue interface {
	// Push добавляет записи в хвост очереди и возвращает новую длину.
	Push(productID string, credentials []string) (int, error)
	// Pop атомарно снимает голову очереди. ok=false означает пустую
	// очередь, это не ошибка.
	Pop(productID string) (credential string, ok bool, err error)
	// PushFront возвращает записи в голову очереди с сохранением
	// порядка (используется при откате частичной выдачи).
	PushFront(productID string, credentials []string) error
	Len(productID string) (int, error)
	Lens() (map[string]int, error)
}

// SalesLedger — append-only журнал продаж.
type SalesLedger interface {
	Archive(rec SoldRecord) error
	Report(days int) (SalesReport, error)
	ByCustomer(customerID string, limit int) ([]SoldRecord, error)
}

// AuditEntry — запись аудита складских операций.
type AuditEntry struct {
	TransactionID string            `json:"transaction_id"`
	Action        string            `json:"action"`
	At            time.Time         `json:"at"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// AuditLog пишет аудит-записи в долговременное хранилище.
type AuditLog interface {
	Record(entry AuditEntry) error
}

// InvoiceStatus — статус инвойса во внешнем платёжном шлюзе.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceSucceeded InvoiceStatus = "succeeded"
	InvoiceExpired   InvoiceStatus = "expired"
	InvoiceFailed    InvoiceStatus = "failed"
)

// Invoice — созданный во внешнем шлюзе счёт на оплату.
type Invoice struct {
	ID        string
	QRString  string
	AmountUSD int64
	ExpiresAt time.Time
}

// PaymentGateway описывает взаимодействие с внешним платёжным
// провайдером. Все вызовы обязаны уважать дедлайн контекста.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, orderID string, amountUSD int64, method PaymentMethod) (Invoice, error)
	CheckStatus(ctx context.Context, invoiceID string) (InvoiceStatus, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}
