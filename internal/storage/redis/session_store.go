package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	opTimeout        = 3 * time.Second
)

// sessionStoreRedis хранит сессии в hash-ключах `session:<customerID>`
// с TTL на уровне ключа: Redis сам удаляет неактивные сессии.
// Мутаторы пишут только свои поля, поэтому конкурентные обновления
// разных групп полей не теряют изменения друг друга. Корзина —
// единственное поле с чтением-изменением-записью, она сериализуется
// локальным мьютексом.
type sessionStoreRedis struct {
	client *redis.Client
	ttl    time.Duration

	maxCartItems int
	cartMu       sync.Mutex
}

// NewSessionStore возвращает Redis-хранилище сессий.
func NewSessionStore(client *redis.Client, ttl time.Duration, maxCartItems int) domain.SessionStore {
	return &sessionStoreRedis{
		client:       client,
		ttl:          ttl,
		maxCartItems: maxCartItems,
	}
}

func sessionKey(customerID string) string {
	return sessionKeyPrefix + customerID
}

func (s *sessionStoreRedis) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// touch обновляет lastActivity и продлевает TTL ключа.
func (s *sessionStoreRedis) touch(ctx context.Context, customerID string) error {
	key := sessionKey(customerID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_activity", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to touch session in redis: %w", err)
	}
	return nil
}

// setFields записывает группу полей сессии и продлевает TTL.
func (s *sessionStoreRedis) setFields(customerID string, fields map[string]interface{}) error {
	ctx, cancel := s.opCtx()
	defer cancel()

	key := sessionKey(customerID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.HSetNX(ctx, key, "step", string(domain.StepMenu))
	pipe.HSet(ctx, key, "last_activity", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session in redis: %w", err)
	}
	return nil
}

// Get читает сессию, создавая её лениво, и обновляет lastActivity.
func (s *sessionStoreRedis) Get(customerID string) (domain.Session, error) {
	ctx, cancel := s.opCtx()
	defer cancel()

	raw, err := s.client.HGetAll(ctx, sessionKey(customerID)).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to get session from redis: %w", err)
	}

	sess := domain.NewSession(customerID)
	if len(raw) > 0 {
		if err := unmarshalSession(raw, &sess); err != nil {
			return domain.Session{}, err
		}
	}
	if err := s.touch(ctx, customerID); err != nil {
		return domain.Session{}, err
	}
	sess.LastActivity = time.Now().UTC()
	return sess, nil
}

func unmarshalSession(raw map[string]string, sess *domain.Session) error {
	if v := raw["step"]; v != "" {
		sess.Step = domain.Step(v)
	}
	if v := raw["cart"]; v != "" {
		if err := json.Unmarshal([]byte(v), &sess.Cart); err != nil {
			return fmt.Errorf("failed to unmarshal cart from redis: %w", err)
		}
	}
	sess.OrderID = raw["order_id"]
	sess.PaymentMethod = domain.PaymentMethod(raw["payment_method"])
	sess.PaymentInvoiceID = raw["payment_invoice_id"]
	sess.PaymentProofPath = raw["payment_proof_path"]
	sess.PromoCode = raw["promo_code"]
	sess.BulkAddProductID = raw["bulk_add_product_id"]

	if v := raw["discount_percent"]; v != "" {
		pct, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed to parse discount percent from redis: %w", err)
		}
		sess.DiscountPercent = pct
	}
	if v := raw["qris_amount_usd"]; v != "" {
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse qris amount from redis: %w", err)
		}
		sess.QRISAmountUSD = amount
	}
	if v := raw["qris_issued_at"]; v != "" {
		issuedAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("failed to parse qris issued at from redis: %w", err)
		}
		sess.QRISIssuedAt = issuedAt
	}
	if v := raw["last_activity"]; v != "" {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("failed to parse last activity from redis: %w", err)
		}
		sess.LastActivity = at
	}
	return nil
}

func (s *sessionStoreRedis) SetStep(customerID string, step domain.Step) error {
	return s.setFields(customerID, map[string]interface{}{"step": string(step)})
}

func (s *sessionStoreRedis) AppendCartLine(customerID string, line domain.CartLine) error {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	sess, err := s.Get(customerID)
	if err != nil {
		return err
	}
	if s.maxCartItems > 0 && len(sess.Cart) >= s.maxCartItems {
		return domain.ErrCartFull
	}

	cart := append(sess.Cart, line)
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	return s.setFields(customerID, map[string]interface{}{"cart": string(data)})
}

// ClearCart очищает корзину и сбрасывает промо-поля.
func (s *sessionStoreRedis) ClearCart(customerID string) error {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	return s.setFields(customerID, map[string]interface{}{
		"cart":             "[]",
		"promo_code":       "",
		"discount_percent": "0",
	})
}

func (s *sessionStoreRedis) SetOrderID(customerID, orderID string) error {
	return s.setFields(customerID, map[string]interface{}{"order_id": orderID})
}

func (s *sessionStoreRedis) SetPaymentMethod(customerID string, method domain.PaymentMethod, invoiceID string) error {
	return s.setFields(customerID, map[string]interface{}{
		"payment_method":     string(method),
		"payment_invoice_id": invoiceID,
	})
}

func (s *sessionStoreRedis) SetQRISInvoice(customerID, invoiceID string, amountUSD int64, issuedAt time.Time) error {
	return s.setFields(customerID, map[string]interface{}{
		"payment_invoice_id": invoiceID,
		"qris_amount_usd":    strconv.FormatInt(amountUSD, 10),
		"qris_issued_at":     issuedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *sessionStoreRedis) SetPaymentProof(customerID, path string) error {
	return s.setFields(customerID, map[string]interface{}{"payment_proof_path": path})
}

func (s *sessionStoreRedis) SetPromo(customerID, code string, discountPercent int) error {
	return s.setFields(customerID, map[string]interface{}{
		"promo_code":       code,
		"discount_percent": strconv.Itoa(discountPercent),
	})
}

func (s *sessionStoreRedis) SetBulkAddProduct(customerID, productID string) error {
	return s.setFields(customerID, map[string]interface{}{"bulk_add_product_id": productID})
}

// FindCustomerByOrderID перебирает активные сессии через SCAN.
// Число живых сессий ограничено TTL, полного KEYS здесь нет.
func (s *sessionStoreRedis) FindCustomerByOrderID(orderID string) (string, error) {
	if orderID == "" {
		return "", domain.ErrOrderNotFound
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		got, err := s.client.HGet(ctx, key, "order_id").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read order id from redis: %w", err)
		}
		if got == orderID {
			return strings.TrimPrefix(key, sessionKeyPrefix), nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to scan sessions in redis: %w", err)
	}
	return "", domain.ErrOrderNotFound
}

func (s *sessionStoreRedis) ActiveCustomerIDs() ([]string, error) {
	ctx, cancel := s.opCtx()
	defer cancel()

	var ids []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), sessionKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions in redis: %w", err)
	}
	return ids, nil
}

// CleanupExpired — no-op: просроченные ключи удаляет сам Redis по TTL.
func (s *sessionStoreRedis) CleanupExpired() (int, error) {
	return 0, nil
}

var _ domain.SessionStore = (*sessionStoreRedis)(nil)
