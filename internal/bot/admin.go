package bot

import (
	"context"
	"fmt"
	"sort"
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

const defaultStatsDays = 30

// AdminHandler обрабатывает команды админа. Авторизацию отправителя
// выполняет Router, сюда попадают только сообщения из whitelist.
type AdminHandler struct {
	sessions  domain.SessionStore
	inventory *inventory.Service
	promos    *promo.Service
	catalog   *catalog.Catalog
	gateway   domain.PaymentGateway

	cfg        Config
	botMetrics *metrics.BotMetrics
	logger     *log.Entry
	startedAt  time.Time
	now        func() time.Time

	// customerLocks сериализует approve с сообщениями самого клиента.
	// NewRouter заменяет его на общий с Route экземпляр.
	customerLocks *keyedLocks
}

// NewAdminHandler собирает обработчик админ-команд.
func NewAdminHandler(
	sessions domain.SessionStore,
	inventorySvc *inventory.Service,
	promoSvc *promo.Service,
	productCatalog *catalog.Catalog,
	gateway domain.PaymentGateway,
	cfg Config,
	botMetrics *metrics.BotMetrics,
	logger *log.Entry,
) *AdminHandler {
	if logger == nil {
		logger = log.New().WithField("component", "admin-handler")
	}
	if cfg.USDToIDRRate <= 0 {
		cfg.USDToIDRRate = defaultUSDToIDRRate
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	return &AdminHandler{
		sessions:      sessions,
		inventory:     inventorySvc,
		promos:        promoSvc,
		catalog:       productCatalog,
		gateway:       gateway,
		cfg:           cfg,
		botMetrics:    botMetrics,
		logger:        logger,
		startedAt:     time.Now().UTC(),
		now:           func() time.Time { return time.Now().UTC() },
		customerLocks: newKeyedLocks(),
	}
}

// Handle разбирает одну админ-команду. Регистр учётных данных в
// аргументах сохраняется, в нижний регистр приводится только сама команда.
func (h *AdminHandler) Handle(ctx context.Context, adminID, raw string) domain.Reply {
	trimmed := strings.TrimSpace(raw)

	if !strings.HasPrefix(trimmed, "/") {
		session, err := h.sessions.Get(adminID)
		if err == nil && session.Step == domain.StepAdminBulkAdd {
			return h.processBulkAdd(adminID, session.BulkAddProductID, trimmed)
		}
		return domain.TextReply{Text: adminHelpText()}
	}

	fields := strings.Fields(trimmed)
	command := strings.ToLower(fields[0])

	switch command {
	case "/approve":
		return h.handleApprove(ctx, adminID, fields)
	case "/broadcast":
		return h.handleBroadcast(adminID, trimmed)
	case "/stats":
		return h.handleStats(fields, defaultStatsDays)
	case "/salesreport":
		return h.handleStats(fields, 7)
	case "/status":
		return h.handleStatus()
	case "/stock":
		return h.handleStock(fields)
	case "/stockreport":
		return h.handleStockReport()
	case "/addstock":
		return h.handleAddStock(adminID, fields, trimmed)
	case "/addstock-bulk":
		return h.handleAddStockBulk(adminID, fields)
	case "/createpromo":
		return h.handleCreatePromo(fields)
	case "/listpromos":
		return h.handleListPromos()
	case "/deletepromo":
		return h.handleDeletePromo(fields)
	case "/deactivatepromo":
		return h.handleDeactivatePromo(fields)
	case "/promostats":
		return h.handlePromoStats(fields)
	default:
		return domain.TextReply{Text: adminHelpText()}
	}
}

func (h *AdminHandler) handleBroadcast(adminID, trimmed string) domain.Reply {
	message := strings.TrimSpace(strings.TrimPrefix(trimmed, "/broadcast"))
	if message == "" {
		return domain.TextReply{Text: "Format: /broadcast <pesan>"}
	}

	recipients, err := h.sessions.ActiveCustomerIDs()
	if err != nil {
		h.logger.WithError(err).Error("active customers lookup failed")
		return domain.TextReply{Text: textSystemError}
	}
	// сам админ не получает собственную рассылку
	filtered := recipients[:0]
	for _, id := range recipients {
		if id != adminID {
			filtered = append(filtered, id)
		}
	}

	h.logger.WithFields(log.Fields{
		"admin_id":   adminID,
		"recipients": len(filtered),
	}).Info("broadcast requested")
	return domain.BroadcastReply{
		Text:       fmt.Sprintf("📣 Broadcast terkirim ke %d pelanggan aktif.", len(filtered)),
		Recipients: append([]string(nil), filtered...),
		Message:    message,
	}
}

func (h *AdminHandler) handleStats(fields []string, defaultDays int) domain.Reply {
	days := defaultDays
	if len(fields) > 1 {
		parsed, err := strconv.Atoi(fields[1])
		if err != nil || parsed < 1 {
			return domain.TextReply{Text: "Format: " + fields[0] + " [hari]"}
		}
		days = parsed
	}

	report, err := h.inventory.SalesReport(days)
	if err != nil {
		h.logger.WithError(err).Error("sales report failed")
		return domain.TextReply{Text: textSystemError}
	}
	return domain.TextReply{Text: formatSalesReport(report)}
}

func (h *AdminHandler) handleStatus() domain.Reply {
	uptime := h.now().Sub(h.startedAt).Round(time.Second)

	active, err := h.sessions.ActiveCustomerIDs()
	if err != nil {
		h.logger.WithError(err).Error("active customers lookup failed")
		return domain.TextReply{Text: textSystemError}
	}
	counts, err := h.inventory.AllStockCounts()
	if err != nil {
		h.logger.WithError(err).Error("stock counts failed")
		return domain.TextReply{Text: textSystemError}
	}
	totalStock := 0
	for _, n := range counts {
		totalStock += n
	}

	if h.botMetrics != nil {
		h.botMetrics.SetActiveSessions(len(active))
	}

	var b strings.Builder
	b.WriteString("🤖 *STATUS BOT*\n\n")
	b.WriteString(fmt.Sprintf("Uptime: %s\n", uptime))
	b.WriteString(fmt.Sprintf("Sesi aktif: %d\n", len(active)))
	b.WriteString(fmt.Sprintf("Total stok: %d (%d produk)", totalStock, len(counts)))
	return domain.TextReply{Text: b.String()}
}

func (h *AdminHandler) handleStock(fields []string) domain.Reply {
	// /stock только читает остатки; молча глотать лишние аргументы
	// нельзя — админ мог перепутать команду с /addstock
	if len(fields) > 2 {
		return domain.TextReply{Text: "❌ /stock hanya menampilkan stok. Tambah stok lewat /addstock atau /addstock-bulk.\n\nFormat: /stock [produk]"}
	}
	if len(fields) > 1 {
		count, err := h.inventory.StockCount(fields[1])
		if err != nil {
			return domain.TextReply{Text: fmt.Sprintf("❌ %v", err)}
		}
		return domain.TextReply{Text: fmt.Sprintf("📦 Stok *%s*: %d", strings.ToLower(fields[1]), count)}
	}
	return h.handleStockReport()
}

func (h *AdminHandler) handleStockReport() domain.Reply {
	counts, err := h.inventory.AllStockCounts()
	if err != nil {
		h.logger.WithError(err).Error("stock counts failed")
		return domain.TextReply{Text: textSystemError}
	}
	if len(counts) == 0 {
		return domain.TextReply{Text: "📦 Semua stok kosong."}
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("📦 *LAPORAN STOK*\n")
	for _, id := range ids {
		name := id
		if p, err := h.catalog.Get(id); err == nil {
			name = p.Name
		}
		b.WriteString(fmt.Sprintf("\n• %s: %d", name, counts[id]))
	}
	return domain.TextReply{Text: b.String()}
}

func (h *AdminHandler) handleAddStock(adminID string, fields []string, trimmed string) domain.Reply {
	if len(fields) < 3 {
		return domain.TextReply{Text: "Format: /addstock <produk> <kredensial>"}
	}

	// кредензиал может содержать пробелы — берём остаток строки после
	// идентификатора товара
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
	credential := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))

	count, err := h.inventory.AddCredentials(fields[1], credential, adminID)
	if err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ Gagal menambah stok: %v", err)}
	}
	return domain.TextReply{Text: fmt.Sprintf("✅ Stok ditambahkan. *%s* sekarang: %d", strings.ToLower(fields[1]), count)}
}

func (h *AdminHandler) handleAddStockBulk(adminID string, fields []string) domain.Reply {
	if len(fields) < 2 {
		return domain.TextReply{Text: "Format: /addstock-bulk <produk>"}
	}

	productID, err := inventory.SanitizeProductID(fields[1])
	if err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ %v", err)}
	}
	if err := h.sessions.SetBulkAddProduct(adminID, productID); err != nil {
		h.logger.WithError(err).WithField("admin_id", adminID).Error("set bulk product failed")
		return domain.TextReply{Text: textSystemError}
	}
	if err := h.sessions.SetStep(adminID, domain.StepAdminBulkAdd); err != nil {
		h.logger.WithError(err).WithField("admin_id", adminID).Error("set bulk step failed")
		return domain.TextReply{Text: textSystemError}
	}
	return domain.TextReply{Text: fmt.Sprintf(
		"📥 Mode bulk add untuk *%s*.\n\nKirim daftar kredensial, satu per baris. Kirim *cancel* untuk batal.", productID)}
}

// processBulkAdd обрабатывает второе сообщение двухфазного bulk add:
// список учётных данных построчно.
func (h *AdminHandler) processBulkAdd(adminID, productID, trimmed string) domain.Reply {
	defer func() {
		if err := h.sessions.SetBulkAddProduct(adminID, ""); err != nil {
			h.logger.WithError(err).WithField("admin_id", adminID).Warn("reset bulk product failed")
		}
		if err := h.sessions.SetStep(adminID, domain.StepMenu); err != nil {
			h.logger.WithError(err).WithField("admin_id", adminID).Warn("reset bulk step failed")
		}
	}()

	if strings.EqualFold(trimmed, "cancel") {
		return domain.TextReply{Text: "🚫 Bulk add dibatalkan."}
	}
	if productID == "" {
		return domain.TextReply{Text: "❌ Produk untuk bulk add tidak ditemukan. Ulangi /addstock-bulk."}
	}

	lines := strings.Split(trimmed, "\n")
	result, err := h.inventory.AddBulkCredentials(productID, lines, adminID)
	if err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ Gagal bulk add: %v", err)}
	}

	var b strings.Builder
	b.WriteString("📥 *HASIL BULK ADD*\n\n")
	b.WriteString(fmt.Sprintf("Valid: %d\n", result.ValidCount))
	b.WriteString(fmt.Sprintf("Invalid: %d\n", result.InvalidCount))
	b.WriteString(fmt.Sprintf("Stok *%s* sekarang: %d", productID, result.StockCount))
	for _, line := range result.Errors {
		b.WriteString("\n⚠️ " + line)
	}
	return domain.TextReply{Text: b.String()}
}

func (h *AdminHandler) handleCreatePromo(fields []string) domain.Reply {
	if len(fields) < 4 {
		return domain.TextReply{Text: "Format: /createpromo <KODE> <persen> <hari> [maks-pakai]"}
	}

	percent, err := strconv.Atoi(fields[2])
	if err != nil {
		return domain.TextReply{Text: textInvalidInput}
	}
	days, err := strconv.Atoi(fields[3])
	if err != nil {
		return domain.TextReply{Text: textInvalidInput}
	}
	maxUses := 0
	if len(fields) > 4 {
		maxUses, err = strconv.Atoi(fields[4])
		if err != nil {
			return domain.TextReply{Text: textInvalidInput}
		}
	}

	created, err := h.promos.CreatePromo(fields[1], percent, days, maxUses)
	if err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ Gagal membuat promo: %v", err)}
	}

	limit := "tanpa batas"
	if created.MaxUses > 0 {
		limit = strconv.Itoa(created.MaxUses)
	}
	return domain.TextReply{Text: fmt.Sprintf(
		"🎁 Promo *%s* dibuat.\nDiskon: %d%%\nBerlaku sampai: %s\nMaks pakai: %s",
		created.Code, created.DiscountPercent, created.ExpiresAt.Format("2006-01-02"), limit)}
}

func (h *AdminHandler) handleListPromos() domain.Reply {
	promos, err := h.promos.ListPromos()
	if err != nil {
		h.logger.WithError(err).Error("list promos failed")
		return domain.TextReply{Text: textSystemError}
	}
	if len(promos) == 0 {
		return domain.TextReply{Text: "🎁 Belum ada promo."}
	}

	var b strings.Builder
	b.WriteString("🎁 *DAFTAR PROMO*\n")
	for _, p := range promos {
		status := "aktif"
		if !p.IsActive {
			status = "nonaktif"
		}
		b.WriteString(fmt.Sprintf("\n• %s — %d%%, dipakai %d, %s, sampai %s",
			p.Code, p.DiscountPercent, p.CurrentUses, status, p.ExpiresAt.Format("2006-01-02")))
	}
	return domain.TextReply{Text: b.String()}
}

func (h *AdminHandler) handleDeletePromo(fields []string) domain.Reply {
	if len(fields) < 2 {
		return domain.TextReply{Text: "Format: /deletepromo <KODE>"}
	}
	if err := h.promos.DeletePromo(fields[1]); err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ %v", err)}
	}
	return domain.TextReply{Text: fmt.Sprintf("🗑️ Promo *%s* dihapus.", promo.NormalizeCode(fields[1]))}
}

func (h *AdminHandler) handleDeactivatePromo(fields []string) domain.Reply {
	if len(fields) < 2 {
		return domain.TextReply{Text: "Format: /deactivatepromo <KODE>"}
	}
	if err := h.promos.DeactivatePromo(fields[1]); err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ %v", err)}
	}
	return domain.TextReply{Text: fmt.Sprintf("🚫 Promo *%s* dinonaktifkan.", promo.NormalizeCode(fields[1]))}
}

func (h *AdminHandler) handlePromoStats(fields []string) domain.Reply {
	if len(fields) < 2 {
		return domain.TextReply{Text: "Format: /promostats <KODE>"}
	}

	stats, err := h.promos.Stats(fields[1])
	if err != nil {
		return domain.TextReply{Text: fmt.Sprintf("❌ %v", err)}
	}

	remaining := "tanpa batas"
	if stats.RemainingUses >= 0 {
		remaining = strconv.Itoa(stats.RemainingUses)
	}
	expiry := "sudah kedaluwarsa"
	if !stats.IsExpired {
		expiry = fmt.Sprintf("%d hari lagi", stats.ExpiresInDays)
	}
	return domain.TextReply{Text: fmt.Sprintf(
		"📊 *PROMO %s*\n\nDiskon: %d%%\nTotal dipakai: %d\nSisa kuota: %s\nAktif: %t\nKedaluwarsa: %s",
		stats.Code, stats.DiscountPercent, stats.TotalUses, remaining, stats.IsActive, expiry)}
}

func formatSalesReport(report domain.SalesReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *LAPORAN PENJUALAN (%d HARI)*\n\n", report.Days))
	b.WriteString(fmt.Sprintf("Total terjual: %d\n", report.TotalSales))
	if len(report.ByProduct) > 0 {
		ids := make([]string, 0, len(report.ByProduct))
		for id := range report.ByProduct {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("\n• %s: %d", id, report.ByProduct[id]))
		}
	}
	return b.String()
}

func adminHelpText() string {
	var b strings.Builder
	b.WriteString("🛠️ *PERINTAH ADMIN*\n\n")
	b.WriteString("/approve <orderId> — konfirmasi pembayaran manual\n")
	b.WriteString("/broadcast <pesan> — kirim ke semua pelanggan aktif\n")
	b.WriteString("/stats [hari] — statistik penjualan (default 30 hari)\n")
	b.WriteString("/salesreport [hari] — laporan penjualan (default 7 hari)\n")
	b.WriteString("/status — status bot\n")
	b.WriteString("/stock [produk] — cek stok\n")
	b.WriteString("/stockreport — laporan semua stok\n")
	b.WriteString("/addstock <produk> <kredensial> — tambah satu stok\n")
	b.WriteString("/addstock-bulk <produk> — tambah stok massal\n")
	b.WriteString("/createpromo <KODE> <persen> <hari> [maks] — buat promo\n")
	b.WriteString("/listpromos — daftar promo\n")
	b.WriteString("/deletepromo <KODE> — hapus promo\n")
	b.WriteString("/deactivatepromo <KODE> — nonaktifkan promo\n")
	b.WriteString("/promostats <KODE> — statistik promo")
	return b.String()
}
