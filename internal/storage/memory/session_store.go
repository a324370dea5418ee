package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// sessionStoreInMemory — процесс-локальная реализация SessionStore.
// Все мутаторы выполняются под одним мьютексом, поэтому обновление
// одной группы полей не перетирает другую.
type sessionStoreInMemory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session

	ttl          time.Duration
	maxCartItems int
	now          func() time.Time
}

// NewSessionStore возвращает in-memory хранилище сессий.
func NewSessionStore(ttl time.Duration, maxCartItems int) domain.SessionStore {
	return &sessionStoreInMemory{
		sessions:     make(map[string]*domain.Session),
		ttl:          ttl,
		maxCartItems: maxCartItems,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// getLocked возвращает сессию, создавая её при первом обращении.
// Вызывать только под записывающим мьютексом.
func (s *sessionStoreInMemory) getLocked(customerID string) *domain.Session {
	sess, ok := s.sessions[customerID]
	if !ok {
		created := domain.NewSession(customerID)
		sess = &created
		s.sessions[customerID] = sess
	}
	sess.LastActivity = s.now()
	return sess
}

// Get возвращает копию сессии и обновляет lastActivity.
func (s *sessionStoreInMemory) Get(customerID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	copied := *sess
	copied.Cart = append([]domain.CartLine(nil), sess.Cart...)
	return copied, nil
}

func (s *sessionStoreInMemory) SetStep(customerID string, step domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getLocked(customerID).Step = step
	return nil
}

func (s *sessionStoreInMemory) AppendCartLine(customerID string, line domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	if s.maxCartItems > 0 && len(sess.Cart) >= s.maxCartItems {
		return domain.ErrCartFull
	}
	sess.Cart = append(sess.Cart, line)
	return nil
}

// ClearCart очищает корзину и сбрасывает промо-поля.
func (s *sessionStoreInMemory) ClearCart(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	sess.Cart = nil
	sess.PromoCode = ""
	sess.DiscountPercent = 0
	return nil
}

func (s *sessionStoreInMemory) SetOrderID(customerID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getLocked(customerID).OrderID = orderID
	return nil
}

func (s *sessionStoreInMemory) SetPaymentMethod(customerID string, method domain.PaymentMethod, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	sess.PaymentMethod = method
	sess.PaymentInvoiceID = invoiceID
	return nil
}

func (s *sessionStoreInMemory) SetQRISInvoice(customerID, invoiceID string, amountUSD int64, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	sess.PaymentInvoiceID = invoiceID
	sess.QRISAmountUSD = amountUSD
	sess.QRISIssuedAt = issuedAt
	return nil
}

func (s *sessionStoreInMemory) SetPaymentProof(customerID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getLocked(customerID).PaymentProofPath = path
	return nil
}

func (s *sessionStoreInMemory) SetPromo(customerID, code string, discountPercent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(customerID)
	sess.PromoCode = code
	sess.DiscountPercent = discountPercent
	return nil
}

func (s *sessionStoreInMemory) SetBulkAddProduct(customerID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getLocked(customerID).BulkAddProductID = productID
	return nil
}

// FindCustomerByOrderID ищет клиента линейным проходом: количество
// активных сессий ограничено окном TTL, индекс здесь не окупается.
func (s *sessionStoreInMemory) FindCustomerByOrderID(orderID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for customerID, sess := range s.sessions {
		if sess.OrderID == orderID && orderID != "" {
			return customerID, nil
		}
	}
	return "", domain.ErrOrderNotFound
}

func (s *sessionStoreInMemory) ActiveCustomerIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for customerID := range s.sessions {
		ids = append(ids, customerID)
	}
	return ids, nil
}

// CleanupExpired удаляет сессии, неактивные дольше TTL.
func (s *sessionStoreInMemory) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for customerID, sess := range s.sessions {
		if sess.Expired(s.ttl, now) {
			delete(s.sessions, customerID)
			removed++
		}
	}
	return removed, nil
}

var _ domain.SessionStore = (*sessionStoreInMemory)(nil)
