package bot

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// handleApprove подтверждает ручную оплату: находит клиента по orderID,
// проверяет шаг сессии, опционально перепроверяет оплату в шлюзе и
// выдаёт заказ целиком. При нехватке остатка по любой позиции выдача
// отменяется, корзина и шаг клиента не меняются.
func (h *AdminHandler) handleApprove(ctx context.Context, adminID string, fields []string) domain.Reply {
	if len(fields) < 2 {
		return domain.TextReply{Text: "Format: /approve <orderId>"}
	}
	orderID := fields[1]

	customerID, err := h.sessions.FindCustomerByOrderID(orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.TextReply{Text: approvalErrorText(orderID, err)}
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("order lookup failed")
		return domain.TextReply{Text: textSystemError}
	}

	// сессию клиента мутируем только под его замком; собственный замок
	// админа уже держит Route, повторно его не берём
	if customerID != adminID {
		lock := h.customerLocks.lockFor(customerID)
		lock.Lock()
		defer lock.Unlock()
	}

	session, err := h.sessions.Get(customerID)
	if err != nil {
		h.logger.WithError(err).WithField("customer_id", customerID).Error("session load failed")
		return domain.TextReply{Text: textSystemError}
	}
	// перечитанная под замком сессия могла уйти вперёд: конкурентный
	// approve уже доставил заказ или клиент начал новый
	if err := pendingApproval(session, orderID); err != nil {
		return domain.TextReply{Text: approvalErrorText(orderID, err)}
	}
	if len(session.Cart) == 0 {
		return domain.TextReply{Text: fmt.Sprintf("❌ Keranjang untuk order *%s* kosong.", orderID)}
	}

	if err := h.verifyInvoice(ctx, orderID, session); err != nil {
		return domain.TextReply{Text: approvalErrorText(orderID, err)}
	}

	records, err := h.inventory.DispenseOrder(orderID, customerID, session.Cart)
	if err != nil {
		h.recordApproval("failed")
		if errors.Is(err, domain.ErrOutOfStock) {
			if h.botMetrics != nil {
				h.botMetrics.RecordDispenseEmpty()
			}
			return domain.TextReply{Text: fmt.Sprintf(
				"❌ *Pengiriman gagal untuk order %s*\n\n%v\n\nKeranjang pelanggan tidak diubah. Tambah stok lalu ulangi /approve.", orderID, err)}
		}
		h.logger.WithError(err).WithFields(log.Fields{
			"order_id":    orderID,
			"customer_id": customerID,
		}).Error("order dispense failed")
		return domain.TextReply{Text: textSystemError}
	}

	if err := h.sessions.ClearCart(customerID); err != nil {
		h.logger.WithError(err).WithField("customer_id", customerID).Error("clear cart after delivery failed")
	}
	if err := h.sessions.SetStep(customerID, domain.StepMenu); err != nil {
		h.logger.WithError(err).WithField("customer_id", customerID).Error("reset step after delivery failed")
	}
	// заказ доставлен — повторный /approve с этим orderID должен падать
	// на поиске клиента
	if err := h.sessions.SetOrderID(customerID, ""); err != nil {
		h.logger.WithError(err).WithField("customer_id", customerID).Error("clear order id after delivery failed")
	}

	h.inventory.RecordDelivery(orderID, customerID, len(records))

	h.recordApproval("approved")
	if h.botMetrics != nil {
		for range records {
			h.botMetrics.RecordDispenseSuccess()
		}
		h.botMetrics.RecordDelivery()
	}
	h.logger.WithFields(log.Fields{
		"admin_id":    adminID,
		"order_id":    orderID,
		"customer_id": customerID,
		"items":       len(records),
	}).Info("order approved and delivered")

	return domain.DeliveryReply{
		Text:         fmt.Sprintf("✅ Order *%s* disetujui. %d produk dikirim ke pelanggan.", orderID, len(records)),
		CustomerID:   customerID,
		CustomerText: formatDelivery(orderID, records),
	}
}

// pendingApproval проверяет, что заказ всё ещё ждёт подтверждения.
// upload_proof — тот же ожидающий заказ, клиент уже прислал бумагу.
func pendingApproval(session domain.Session, orderID string) error {
	if session.OrderID != orderID {
		return fmt.Errorf("order %s superseded: %w", orderID, domain.ErrOrderNotPending)
	}
	if session.Step != domain.StepAwaitingApproval && session.Step != domain.StepUploadProof {
		return fmt.Errorf("order %s at step %s: %w", orderID, session.Step, domain.ErrOrderNotPending)
	}
	return nil
}

// verifyInvoice перепроверяет статус инвойса в шлюзе, если он есть.
// Ненулевая ошибка прерывает approve, текст для админа строит
// approvalErrorText.
func (h *AdminHandler) verifyInvoice(ctx context.Context, orderID string, session domain.Session) error {
	if h.gateway == nil || session.PaymentInvoiceID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.GatewayTimeout)
	defer cancel()

	status, err := h.gateway.CheckStatus(ctx, session.PaymentInvoiceID)
	if err != nil {
		h.logger.WithError(err).WithFields(log.Fields{
			"order_id":   orderID,
			"invoice_id": session.PaymentInvoiceID,
		}).Error("payment verification failed")
		return fmt.Errorf("invoice %s: %w", session.PaymentInvoiceID, domain.ErrGatewayUnavailable)
	}
	if status != domain.InvoiceSucceeded {
		return fmt.Errorf("invoice %s status %s: %w", session.PaymentInvoiceID, status, domain.ErrPaymentNotConfirmed)
	}
	return nil
}

func (h *AdminHandler) recordApproval(outcome string) {
	if h.botMetrics != nil {
		h.botMetrics.RecordApproval(outcome)
	}
}
