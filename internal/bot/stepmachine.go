package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/service/inventory"
	"github.com/vladislavdragonenkov/storebot/internal/service/promo"
)

const (
	defaultMaxCartItems   = 50
	defaultUSDToIDRRate   = 15800
	defaultGatewayTimeout = 10 * time.Second
	historyLimit          = 10
)

// BankAccount — реквизиты для ручного банковского перевода.
type BankAccount struct {
	Bank          string
	AccountNumber string
	AccountName   string
}

// Config — настройки диалогового сценария.
type Config struct {
	MaxCartItems   int
	USDToIDRRate   int64
	EnabledMethods []domain.PaymentMethod
	BankAccounts   []BankAccount
	GatewayTimeout time.Duration
}

// paymentOption — один пункт меню выбора способа оплаты.
type paymentOption struct {
	label        string
	method       domain.PaymentMethod
	bankTransfer bool
}

// StepMachine — конечный автомат диалога клиента. На вход — нормализованное
// сообщение и customerID, на выход — Reply. Все сравнения сообщений
// регистронезависимы; неизвестный ввод никогда не приводит к панике.
type StepMachine struct {
	sessions  domain.SessionStore
	catalog   *catalog.Catalog
	inventory *inventory.Service
	promos    *promo.Service
	gateway   domain.PaymentGateway

	cfg        Config
	options    []paymentOption
	botMetrics *metrics.BotMetrics
	logger     *log.Entry
	now        func() time.Time
}

// NewStepMachine собирает автомат диалога. gateway может быть nil —
// тогда QRIS недоступен и в меню остаются только ручные способы оплаты.
func NewStepMachine(
	sessions domain.SessionStore,
	productCatalog *catalog.Catalog,
	inventorySvc *inventory.Service,
	promoSvc *promo.Service,
	gateway domain.PaymentGateway,
	cfg Config,
	botMetrics *metrics.BotMetrics,
	logger *log.Entry,
) *StepMachine {
	if logger == nil {
		logger = log.New().WithField("component", "step-machine")
	}
	if cfg.MaxCartItems <= 0 {
		cfg.MaxCartItems = defaultMaxCartItems
	}
	if cfg.USDToIDRRate <= 0 {
		cfg.USDToIDRRate = defaultUSDToIDRRate
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if len(cfg.EnabledMethods) == 0 {
		cfg.EnabledMethods = []domain.PaymentMethod{domain.PaymentQRIS, domain.PaymentDANA, domain.PaymentGopay}
	}

	m := &StepMachine{
		sessions:   sessions,
		catalog:    productCatalog,
		inventory:  inventorySvc,
		promos:     promoSvc,
		gateway:    gateway,
		cfg:        cfg,
		botMetrics: botMetrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	m.options = m.buildPaymentOptions()
	return m
}

// buildPaymentOptions собирает пункты меню оплаты из включённых методов.
// Банковские методы схлопываются в один пункт "Transfer Bank".
func (m *StepMachine) buildPaymentOptions() []paymentOption {
	bankMethods := map[domain.PaymentMethod]bool{
		domain.PaymentBCA:     true,
		domain.PaymentBNI:     true,
		domain.PaymentBRI:     true,
		domain.PaymentMandiri: true,
	}

	var options []paymentOption
	hasBank := false
	for _, method := range m.cfg.EnabledMethods {
		switch {
		case bankMethods[method]:
			hasBank = true
		case method == domain.PaymentQRIS:
			if m.gateway != nil {
				options = append(options, paymentOption{label: "QRIS (otomatis)", method: domain.PaymentQRIS})
			}
		default:
			options = append(options, paymentOption{label: string(method), method: method})
		}
	}
	if hasBank && len(m.cfg.BankAccounts) > 0 {
		options = append(options, paymentOption{label: "Transfer Bank", bankTransfer: true})
	}
	return options
}

// Handle обрабатывает одно входящее сообщение клиента.
func (m *StepMachine) Handle(ctx context.Context, customerID, raw string) domain.Reply {
	msg := normalize(raw)

	session, err := m.sessions.Get(customerID)
	if err != nil {
		m.logger.WithError(err).WithField("customer_id", customerID).Error("session load failed")
		return domain.TextReply{Text: textSystemError}
	}

	if reply, handled := m.handleGlobal(session, msg); handled {
		return reply
	}

	switch session.Step {
	case domain.StepMenu:
		return m.handleMenu(session, msg)
	case domain.StepBrowsing:
		return m.handleBrowsing(session, msg)
	case domain.StepCheckout:
		return m.handleCheckout(session, msg)
	case domain.StepSelectPayment:
		return m.handleSelectPayment(ctx, session, msg)
	case domain.StepSelectBank:
		return m.handleSelectBank(session, msg)
	case domain.StepAwaitingPayment:
		return m.handleAwaitingPayment(ctx, session, msg)
	case domain.StepAwaitingApproval:
		return m.handleAwaitingApproval(session, raw, msg)
	case domain.StepUploadProof:
		return domain.TextReply{Text: textAwaitingApproval}
	default:
		// неизвестный шаг в хранилище — возвращаем клиента в меню
		m.setStep(session.CustomerID, domain.StepMenu)
		return domain.TextReply{Text: textMainMenu()}
	}
}

// handleGlobal обрабатывает команды, доступные с любого шага.
// Команда cart переводит на checkout только при непустой корзине.
func (m *StepMachine) handleGlobal(session domain.Session, msg string) (domain.Reply, bool) {
	switch msg {
	case "menu":
		m.setStep(session.CustomerID, domain.StepMenu)
		return domain.TextReply{Text: textMainMenu()}, true
	case "help":
		return domain.TextReply{Text: textHelp()}, true
	case "history":
		records, err := m.inventory.SalesByCustomer(session.CustomerID, historyLimit)
		if err != nil {
			m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("history lookup failed")
			return domain.TextReply{Text: textSystemError}, true
		}
		return domain.TextReply{Text: formatHistory(records)}, true
	case "cart":
		if len(session.Cart) == 0 {
			return domain.TextReply{Text: textEmptyCart}, true
		}
		m.setStep(session.CustomerID, domain.StepCheckout)
		return domain.TextReply{Text: formatCart(session, m.cfg.USDToIDRRate)}, true
	}
	return nil, false
}

func (m *StepMachine) handleMenu(session domain.Session, msg string) domain.Reply {
	if msg == "1" {
		m.setStep(session.CustomerID, domain.StepBrowsing)
		return domain.TextReply{Text: m.catalogText()}
	}
	return domain.TextReply{Text: textMainMenu()}
}

func (m *StepMachine) handleBrowsing(session domain.Session, msg string) domain.Reply {
	product, ok := m.catalog.Match(msg)
	if !ok {
		return domain.TextReply{Text: textProductNotFound}
	}
	if len(session.Cart) >= m.cfg.MaxCartItems {
		return domain.TextReply{Text: textCartFull}
	}

	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		PriceUSD:  product.PriceUSD,
		Category:  product.Category,
		AddedAt:   m.now(),
	}
	if err := m.sessions.AppendCartLine(session.CustomerID, line); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("append cart line failed")
		return domain.TextReply{Text: errorText(err)}
	}

	return domain.TextReply{Text: fmt.Sprintf("%s\n\n*%s* — %s\n\nKetik *cart* untuk checkout atau lanjut pilih produk.",
		textProductAdded, product.Name, formatIDR(product.PriceUSD*m.cfg.USDToIDRRate))}
}

func (m *StepMachine) handleCheckout(session domain.Session, msg string) domain.Reply {
	switch {
	case msg == "checkout":
		if len(session.Cart) == 0 {
			return domain.TextReply{Text: textEmptyCart}
		}
		orderID := fmt.Sprintf("ORD-%d", m.now().UnixMilli())
		if err := m.sessions.SetOrderID(session.CustomerID, orderID); err != nil {
			m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set order id failed")
			return domain.TextReply{Text: textSystemError}
		}
		m.setStep(session.CustomerID, domain.StepSelectPayment)
		return domain.TextReply{Text: formatPaymentMenu(m.options)}

	case msg == "clear":
		if err := m.sessions.ClearCart(session.CustomerID); err != nil {
			m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("clear cart failed")
			return domain.TextReply{Text: textSystemError}
		}
		m.setStep(session.CustomerID, domain.StepMenu)
		return domain.TextReply{Text: textCartCleared}

	case strings.HasPrefix(msg, "promo "):
		return m.applyPromo(session, strings.TrimSpace(strings.TrimPrefix(msg, "promo ")))

	default:
		return domain.TextReply{Text: formatCart(session, m.cfg.USDToIDRRate)}
	}
}

func (m *StepMachine) applyPromo(session domain.Session, code string) domain.Reply {
	applied, err := m.promos.ApplyPromo(code, session.CustomerID)
	if err != nil {
		return domain.TextReply{Text: errorText(err)}
	}
	if err := m.sessions.SetPromo(session.CustomerID, applied.Code, applied.DiscountPercent); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set promo failed")
		return domain.TextReply{Text: textSystemError}
	}

	session.PromoCode = applied.Code
	session.DiscountPercent = applied.DiscountPercent
	return domain.TextReply{Text: fmt.Sprintf("🎁 Promo *%s* diterapkan! Diskon %d%%.\n\n%s",
		applied.Code, applied.DiscountPercent, formatCart(session, m.cfg.USDToIDRRate))}
}

func (m *StepMachine) handleSelectPayment(ctx context.Context, session domain.Session, msg string) domain.Reply {
	choice, err := strconv.Atoi(msg)
	if err != nil || choice < 1 || choice > len(m.options) {
		return domain.TextReply{Text: textInvalidInput + "\n\n" + formatPaymentMenu(m.options)}
	}

	option := m.options[choice-1]
	switch {
	case option.bankTransfer:
		m.setStep(session.CustomerID, domain.StepSelectBank)
		return domain.TextReply{Text: formatBankMenu(m.cfg.BankAccounts)}

	case option.method == domain.PaymentQRIS:
		return m.createQRISInvoice(ctx, session)

	default:
		if err := m.sessions.SetPaymentMethod(session.CustomerID, option.method, ""); err != nil {
			m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set payment method failed")
			return domain.TextReply{Text: textSystemError}
		}
		m.setStep(session.CustomerID, domain.StepAwaitingApproval)
		return domain.TextReply{Text: formatManualPaymentInstructions(
			option.method, session.OrderID, session.DiscountedTotalUSD(), m.cfg.USDToIDRRate)}
	}
}

// createQRISInvoice создаёт инвойс во внешнем шлюзе. При ошибке или
// таймауте шаг остаётся select_payment, клиент может выбрать снова.
func (m *StepMachine) createQRISInvoice(ctx context.Context, session domain.Session) domain.Reply {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GatewayTimeout)
	defer cancel()

	amount := session.DiscountedTotalUSD()
	invoice, err := m.gateway.CreateInvoice(ctx, session.OrderID, amount, domain.PaymentQRIS)
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"customer_id": session.CustomerID,
			"order_id":    session.OrderID,
		}).Error("invoice creation failed")
		return domain.TextReply{Text: textGatewayError}
	}

	if err := m.sessions.SetPaymentMethod(session.CustomerID, domain.PaymentQRIS, invoice.ID); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set payment method failed")
		return domain.TextReply{Text: textSystemError}
	}
	if err := m.sessions.SetQRISInvoice(session.CustomerID, invoice.ID, amount, m.now()); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set invoice failed")
		return domain.TextReply{Text: textSystemError}
	}
	m.setStep(session.CustomerID, domain.StepAwaitingPayment)
	return domain.TextReply{Text: formatQRISInvoice(invoice, session.OrderID, m.cfg.USDToIDRRate)}
}

func (m *StepMachine) handleSelectBank(session domain.Session, msg string) domain.Reply {
	choice, err := strconv.Atoi(msg)
	if err != nil || choice < 1 || choice > len(m.cfg.BankAccounts) {
		return domain.TextReply{Text: textInvalidInput + "\n\n" + formatBankMenu(m.cfg.BankAccounts)}
	}

	bank := m.cfg.BankAccounts[choice-1]
	method := domain.PaymentMethod(strings.ToUpper(bank.Bank))
	if err := m.sessions.SetPaymentMethod(session.CustomerID, method, ""); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set payment method failed")
		return domain.TextReply{Text: textSystemError}
	}
	m.setStep(session.CustomerID, domain.StepAwaitingApproval)
	return domain.TextReply{Text: formatBankInstructions(
		bank, session.OrderID, session.DiscountedTotalUSD(), m.cfg.USDToIDRRate)}
}

func (m *StepMachine) handleAwaitingPayment(ctx context.Context, session domain.Session, msg string) domain.Reply {
	if msg != "status" || m.gateway == nil || session.PaymentInvoiceID == "" {
		return domain.TextReply{Text: textAwaitingPayment}
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.GatewayTimeout)
	defer cancel()

	status, err := m.gateway.CheckStatus(ctx, session.PaymentInvoiceID)
	if err != nil {
		m.logger.WithError(err).WithField("invoice_id", session.PaymentInvoiceID).Error("status check failed")
		return domain.TextReply{Text: errorText(domain.ErrGatewayUnavailable)}
	}

	switch status {
	case domain.InvoiceSucceeded:
		m.setStep(session.CustomerID, domain.StepAwaitingApproval)
		return domain.TextReply{Text: "✅ Pembayaran diterima!\n\n" + textAwaitingApproval}
	case domain.InvoiceExpired, domain.InvoiceFailed:
		m.setStep(session.CustomerID, domain.StepSelectPayment)
		return domain.TextReply{Text: "❌ Invoice kedaluwarsa atau gagal. Silakan pilih metode pembayaran lagi.\n\n" + formatPaymentMenu(m.options)}
	default:
		return domain.TextReply{Text: textAwaitingPayment}
	}
}

// handleAwaitingApproval принимает подтверждение перевода. Ссылка на
// бумагу берётся из исходного, ненормализованного текста.
func (m *StepMachine) handleAwaitingApproval(session domain.Session, raw, msg string) domain.Reply {
	if !strings.HasPrefix(msg, "proof") {
		return domain.TextReply{Text: textAwaitingApproval}
	}

	trimmedRaw := strings.TrimSpace(raw)
	reference := ""
	if idx := strings.IndexAny(trimmedRaw, " \t"); idx >= 0 {
		reference = strings.TrimSpace(trimmedRaw[idx+1:])
	}
	if reference == "" {
		reference = fmt.Sprintf("proof-%d", m.now().UnixMilli())
	}
	if err := m.sessions.SetPaymentProof(session.CustomerID, reference); err != nil {
		m.logger.WithError(err).WithField("customer_id", session.CustomerID).Error("set payment proof failed")
		return domain.TextReply{Text: textSystemError}
	}
	m.setStep(session.CustomerID, domain.StepUploadProof)
	return domain.TextReply{Text: textProofReceived}
}

func (m *StepMachine) catalogText() string {
	if err := m.catalog.Refresh(); err != nil {
		m.logger.WithError(err).Warn("catalog refresh failed")
	}
	return formatCatalog(m.catalog.List(), m.cfg.USDToIDRRate)
}

func (m *StepMachine) setStep(customerID string, step domain.Step) {
	if err := m.sessions.SetStep(customerID, step); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"customer_id": customerID,
			"step":        step,
		}).Error("step transition failed")
		return
	}
	if m.botMetrics != nil {
		m.botMetrics.RecordStepTransition(string(step))
	}
}

// normalize приводит сообщение к канону для сравнения: трим и нижний регистр.
func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
