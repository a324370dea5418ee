package domain

import "time"

// Step описывает позицию клиента в диалоговом сценарии оформления заказа.
type Step string

const (
	// StepMenu — стартовый шаг, клиент видит главное меню.
	StepMenu Step = "menu"
	// StepBrowsing — клиент просматривает каталог и ищет товары.
	StepBrowsing Step = "browsing"
	// StepCheckout — клиент видит содержимое корзины и подтверждает заказ.
	StepCheckout Step = "checkout"
	// StepSelectPayment — клиент выбирает способ оплаты.
	StepSelectPayment Step = "select_payment"
	// StepSelectBank — клиент выбирает банк для ручного перевода.
	StepSelectBank Step = "select_bank"
	// StepAwaitingPayment — создан инвойс, ждём callback шлюза.
	StepAwaitingPayment Step = "awaiting_payment"
	// StepAwaitingApproval — оплата вручную, ждём /approve от админа.
	StepAwaitingApproval Step = "awaiting_admin_approval"
	// StepUploadProof — клиент прислал подтверждение перевода.
	StepUploadProof Step = "upload_proof"
	// StepAdminBulkAdd — служебный шаг админа: следующее сообщение содержит список учётных данных.
	StepAdminBulkAdd Step = "admin_bulk_add"
)

// PaymentMethod перечисляет поддерживаемые способы оплаты.
type PaymentMethod string

const (
	PaymentQRIS      PaymentMethod = "QRIS"
	PaymentDANA      PaymentMethod = "DANA"
	PaymentGopay     PaymentMethod = "GOPAY"
	PaymentOVO       PaymentMethod = "OVO"
	PaymentShopeePay PaymentMethod = "SHOPEEPAY"
	PaymentBCA       PaymentMethod = "BCA"
	PaymentBNI       PaymentMethod = "BNI"
	PaymentBRI       PaymentMethod = "BRI"
	PaymentMandiri   PaymentMethod = "MANDIRI"
)

// CartLine — снимок товара на момент добавления в корзину.
// Цена фиксируется при добавлении и не перечитывается из каталога.
type CartLine struct {
	ProductID string
	Name      string
	PriceUSD  int64
	Category  Category
	AddedAt   time.Time
}

// Session хранит состояние диалога одного клиента.
type Session struct {
	CustomerID       string
	Step             Step
	Cart             []CartLine
	OrderID          string
	PaymentMethod    PaymentMethod
	PaymentInvoiceID string
	QRISAmountUSD    int64
	QRISIssuedAt     time.Time
	PaymentProofPath string
	PromoCode        string
	DiscountPercent  int
	BulkAddProductID string
	LastActivity     time.Time
}

// NewSession возвращает сессию с дефолтным шагом и пустой корзиной.
func NewSession(customerID string) Session {
	return Session{
		CustomerID:   customerID,
		Step:         StepMenu,
		Cart:         nil,
		LastActivity: time.Now().UTC(),
	}
}

// CartTotalUSD суммирует цены позиций корзины по зафиксированным ценам.
func (s *Session) CartTotalUSD() int64 {
	var total int64
	for _, line := range s.Cart {
		total += line.PriceUSD
	}
	return total
}

// DiscountedTotalUSD возвращает сумму корзины за вычетом применённой скидки.
func (s *Session) DiscountedTotalUSD() int64 {
	total := s.CartTotalUSD()
	return total - DiscountUSD(total, s.DiscountPercent)
}

// Expired сообщает, истёк ли интервал неактивности сессии.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > ttl
}
