package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов
// и локального запуска без реального провайдера.
type MockGateway struct {
	mu sync.Mutex

	CreateErr error
	Status    domain.InvoiceStatus
	StatusErr error

	// InvoiceTTL определяет срок действия выдаваемых инвойсов.
	InvoiceTTL time.Duration

	CreateCalls int
	StatusCalls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию:
// инвойс создаётся, статус — подтверждённая оплата.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Status:     domain.InvoiceSucceeded,
		InvoiceTTL: 15 * time.Minute,
	}
}

// CreateInvoice возвращает детерминированный инвойс и считает вызовы.
// Дедлайн контекста уважается: по истечении возвращается его ошибка.
func (m *MockGateway) CreateInvoice(ctx context.Context, orderID string, amountUSD int64, method domain.PaymentMethod) (domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return domain.Invoice{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return domain.Invoice{}, m.CreateErr
	}
	id := "inv-" + uuid.NewString()
	return domain.Invoice{
		ID:        id,
		QRString:  fmt.Sprintf("QR|%s|%s|%d", id, orderID, amountUSD),
		AmountUSD: amountUSD,
		ExpiresAt: time.Now().UTC().Add(m.InvoiceTTL),
	}, nil
}

// CheckStatus возвращает настроенный статус и считает вызовы.
func (m *MockGateway) CheckStatus(ctx context.Context, invoiceID string) (domain.InvoiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusCalls++
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	return m.Status, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
