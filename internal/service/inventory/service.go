package inventory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	// minCredentialLength — минимальная длина валидной учётной записи.
	minCredentialLength = 10

	// maxBulkErrors — сколько ошибок построчной валидации показывать админу.
	maxBulkErrors = 3
)

// credentialSeparators — допустимые разделители полей в учётной записи.
var credentialSeparators = []string{":", "|", ","}

// BulkResult — итог пакетного добавления учётных записей.
type BulkResult struct {
	ValidCount   int
	InvalidCount int
	StockCount   int
	Errors       []string
}

// Service управляет FIFO-очередями учётных записей: валидация,
// пополнение, атомарная выдача, журнал продаж и аудит.
type Service struct {
	queue  domain.CredentialQueue
	ledger domain.SalesLedger
	audit  domain.AuditLog
	outbox domain.OutboxRepository // опциональный, события склада

	lowStockThreshold int
	logger            *log.Entry
	now               func() time.Time
}

// NewService создаёт сервис склада. outbox может быть nil — тогда
// события склада не публикуются.
func NewService(
	queue domain.CredentialQueue,
	ledger domain.SalesLedger,
	audit domain.AuditLog,
	outbox domain.OutboxRepository,
	lowStockThreshold int,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Service{
		queue:             queue,
		ledger:            ledger,
		audit:             audit,
		outbox:            outbox,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SanitizeProductID нормализует внешний идентификатор товара перед
// использованием как ключ хранилища: нижний регистр, только [a-z0-9-_].
func SanitizeProductID(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" {
		return "", domain.ErrProductIDEmpty
	}
	return id, nil
}

// ValidateCredential проверяет формат учётной записи: непустая строка
// с известным разделителем полей и минимальной длиной.
func ValidateCredential(credential string) error {
	trimmed := strings.TrimSpace(credential)
	if trimmed == "" {
		return domain.ErrCredentialEmpty
	}

	hasSeparator := false
	for _, sep := range credentialSeparators {
		if strings.Contains(trimmed, sep) {
			hasSeparator = true
			break
		}
	}
	if !hasSeparator {
		return domain.ErrCredentialNoSeparator
	}
	if len(trimmed) < minCredentialLength {
		return domain.ErrCredentialTooShort
	}
	return nil
}

// AddCredentials валидирует и добавляет одну учётную запись в хвост
// очереди товара, возвращает обновлённый остаток.
func (s *Service) AddCredentials(productID, credential, adminID string) (int, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return 0, err
	}
	if err := ValidateCredential(credential); err != nil {
		return 0, err
	}

	count, err := s.queue.Push(id, []string{strings.TrimSpace(credential)})
	if err != nil {
		return 0, fmt.Errorf("push credential: %w", err)
	}

	s.recordAudit("add_stock", map[string]string{
		"product_id": id,
		"admin_id":   adminID,
		"stock":      fmt.Sprintf("%d", count),
	})
	s.emitEvent(domain.EventStockAdded, id, map[string]interface{}{
		"product_id": id,
		"added":      1,
		"stock":      count,
	})
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"admin_id":   adminID,
		"stock":      count,
	}).Info("credential added")
	return count, nil
}

// AddBulkCredentials валидирует каждую строку независимо и добавляет
// все валидные одним батчем. В отчёте — счётчики и первые ошибки.
func (s *Service) AddBulkCredentials(productID string, credentials []string, adminID string) (BulkResult, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return BulkResult{}, err
	}

	var result BulkResult
	valid := make([]string, 0, len(credentials))
	for i, credential := range credentials {
		if strings.TrimSpace(credential) == "" {
			continue
		}
		if err := ValidateCredential(credential); err != nil {
			result.InvalidCount++
			if len(result.Errors) < maxBulkErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			}
			continue
		}
		valid = append(valid, strings.TrimSpace(credential))
	}
	result.ValidCount = len(valid)

	if len(valid) > 0 {
		count, err := s.queue.Push(id, valid)
		if err != nil {
			return BulkResult{}, fmt.Errorf("push credentials batch: %w", err)
		}
		result.StockCount = count
	} else {
		count, err := s.queue.Len(id)
		if err != nil {
			return BulkResult{}, fmt.Errorf("get stock count: %w", err)
		}
		result.StockCount = count
	}

	s.recordAudit("add_stock_bulk", map[string]string{
		"product_id": id,
		"admin_id":   adminID,
		"valid":      fmt.Sprintf("%d", result.ValidCount),
		"invalid":    fmt.Sprintf("%d", result.InvalidCount),
	})
	if result.ValidCount > 0 {
		s.emitEvent(domain.EventStockAdded, id, map[string]interface{}{
			"product_id": id,
			"added":      result.ValidCount,
			"stock":      result.StockCount,
		})
	}
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"admin_id":   adminID,
		"valid":      result.ValidCount,
		"invalid":    result.InvalidCount,
	}).Info("bulk credentials added")
	return result, nil
}

// Dispense атомарно снимает голову очереди товара. ok=false означает
// "нет на складе", вызывающий обязан трактовать это не как ошибку.
func (s *Service) Dispense(productID string) (string, bool, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return "", false, err
	}

	credential, ok, err := s.queue.Pop(id)
	if err != nil {
		return "", false, fmt.Errorf("pop credential: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	remaining, err := s.queue.Len(id)
	if err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("stock count after dispense failed")
	} else if s.lowStockThreshold > 0 && remaining <= s.lowStockThreshold {
		s.emitEvent(domain.EventStockLow, id, map[string]interface{}{
			"product_id": id,
			"remaining":  remaining,
		})
	}
	return credential, true, nil
}

// Requeue возвращает учётные записи в голову очереди с сохранением
// порядка. Используется при откате частично выданного заказа.
func (s *Service) Requeue(productID string, credentials []string) error {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return err
	}
	if err := s.queue.PushFront(id, credentials); err != nil {
		return fmt.Errorf("requeue credentials: %w", err)
	}
	s.recordAudit("requeue", map[string]string{
		"product_id": id,
		"count":      fmt.Sprintf("%d", len(credentials)),
	})
	return nil
}

// DispenseOrder выдаёт по одной учётной записи на каждую позицию
// корзины по принципу "всё или ничего": при нехватке остатка на любой
// позиции уже снятые записи возвращаются в головы своих очередей,
// а вызывающему возвращается ошибка с именем товара без остатка.
func (s *Service) DispenseOrder(orderID, customerID string, lines []domain.CartLine) ([]domain.SoldRecord, error) {
	type popped struct {
		productID  string
		credential string
	}

	dispensed := make([]popped, 0, len(lines))
	rollback := func() {
		// возвращаем в обратном порядке, чтобы головы очередей
		// восстановились как до начала выдачи
		for i := len(dispensed) - 1; i >= 0; i-- {
			p := dispensed[i]
			if err := s.Requeue(p.productID, []string{p.credential}); err != nil {
				s.logger.WithError(err).WithFields(log.Fields{
					"order_id":   orderID,
					"product_id": p.productID,
				}).Error("rollback requeue failed, credential needs manual recovery")
			}
		}
	}

	for _, line := range lines {
		credential, ok, err := s.Dispense(line.ProductID)
		if err != nil {
			rollback()
			return nil, err
		}
		if !ok {
			rollback()
			s.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Warn("order dispense failed, product out of stock")
			return nil, fmt.Errorf("product %s: %w", line.ProductID, domain.ErrOutOfStock)
		}
		dispensed = append(dispensed, popped{productID: line.ProductID, credential: credential})
	}

	records := make([]domain.SoldRecord, 0, len(dispensed))
	for _, p := range dispensed {
		rec := domain.SoldRecord{
			TransactionID: "TXN-" + uuid.NewString(),
			ProductID:     p.productID,
			OrderID:       orderID,
			CustomerID:    customerID,
			Credential:    p.credential,
			SoldAt:        s.now(),
		}
		if err := s.ArchiveSold(rec); err != nil {
			// выдача уже состоялась, продажу не откатываем — журнал
			// догоняется вручную по аудиту
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":       orderID,
				"transaction_id": rec.TransactionID,
			}).Error("archive sold record failed")
		}
		records = append(records, rec)
	}

	s.emitEvent(domain.EventSaleCompleted, orderID, map[string]interface{}{
		"order_id":    orderID,
		"customer_id": customerID,
		"items":       len(records),
	})
	return records, nil
}

// RecordDelivery фиксирует факт доставки заказа клиенту: аудит-запись
// и событие delivery.sent для внешних потребителей.
func (s *Service) RecordDelivery(orderID, customerID string, items int) {
	s.recordAudit("delivered", map[string]string{
		"order_id":    orderID,
		"customer_id": customerID,
		"items":       fmt.Sprintf("%d", items),
	})
	s.emitEvent(domain.EventDeliverySent, orderID, map[string]interface{}{
		"order_id":    orderID,
		"customer_id": customerID,
		"items":       items,
	})
}

// ArchiveSold пишет запись о продаже в журнал и аудит.
func (s *Service) ArchiveSold(rec domain.SoldRecord) error {
	if rec.TransactionID == "" {
		rec.TransactionID = "TXN-" + uuid.NewString()
	}
	if rec.SoldAt.IsZero() {
		rec.SoldAt = s.now()
	}
	if err := s.ledger.Archive(rec); err != nil {
		return fmt.Errorf("archive sold record: %w", err)
	}
	s.recordAudit("sold", map[string]string{
		"transaction_id": rec.TransactionID,
		"product_id":     rec.ProductID,
		"order_id":       rec.OrderID,
		"customer_id":    rec.CustomerID,
	})
	return nil
}

// StockCount возвращает остаток по товару.
func (s *Service) StockCount(productID string) (int, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return 0, err
	}
	return s.queue.Len(id)
}

// AllStockCounts возвращает остатки всех товаров с непустыми очередями.
func (s *Service) AllStockCounts() (map[string]int, error) {
	return s.queue.Lens()
}

// SalesReport агрегирует журнал продаж за последние days дней.
func (s *Service) SalesReport(days int) (domain.SalesReport, error) {
	if days <= 0 {
		days = 7
	}
	return s.ledger.Report(days)
}

// SalesByCustomer возвращает последние покупки клиента.
func (s *Service) SalesByCustomer(customerID string, limit int) ([]domain.SoldRecord, error) {
	return s.ledger.ByCustomer(customerID, limit)
}

func (s *Service) recordAudit(action string, fields map[string]string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		TransactionID: "TXN-" + uuid.NewString(),
		Action:        action,
		At:            s.now(),
		Fields:        fields,
	}
	if err := s.audit.Record(entry); err != nil {
		s.logger.WithError(err).WithField("action", action).Error("audit record failed")
	}
}

func (s *Service) emitEvent(eventType, aggregateID string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("event", eventType).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "inventory",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("event", eventType).Error("enqueue event failed")
	}
}
