package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Тексты для клиентов — на индонезийском, как в продакшн-магазине.
const (
	textEmptyCart        = "🛒 Keranjang Anda kosong.\n\nKetik *menu* untuk mulai berbelanja!"
	textProductNotFound  = "❌ Produk tidak ditemukan. Silakan cek daftar produk."
	textProductAdded     = "✅ Produk berhasil ditambahkan ke keranjang!"
	textCartCleared      = "🗑️ Keranjang telah dikosongkan."
	textCartFull         = "❌ Keranjang sudah penuh. Selesaikan pesanan Anda terlebih dahulu."
	textUnauthorized     = "❌ Anda tidak memiliki akses untuk perintah ini."
	textInvalidInput     = "❌ Input tidak valid. Silakan coba lagi."
	textSystemError      = "❌ Terjadi kesalahan sistem. Silakan hubungi admin."
	textGatewayError     = "❌ Gagal membuat invoice pembayaran. Silakan coba lagi dalam beberapa saat."
	textAwaitingPayment  = "⏳ Menunggu pembayaran Anda. Ketik *status* untuk cek status pembayaran."
	textAwaitingApproval = "⏳ Pembayaran Anda sedang diverifikasi admin. Mohon tunggu konfirmasi."
	textProofReceived    = "✅ Bukti pembayaran diterima!\n\nAdmin akan memverifikasi pembayaran Anda segera."
	textNoHistory        = "📋 Belum ada riwayat pembelian."
)

func textMainMenu() string {
	var b strings.Builder
	b.WriteString("🏪 *SELAMAT DATANG DI TOKO KAMI* 🏪\n\n")
	b.WriteString("Pilih menu:\n")
	b.WriteString("1️⃣ Lihat Produk\n\n")
	b.WriteString("Perintah cepat:\n")
	b.WriteString("• *cart* — lihat keranjang\n")
	b.WriteString("• *history* — riwayat pembelian\n")
	b.WriteString("• *help* — bantuan")
	return b.String()
}

func textHelp() string {
	var b strings.Builder
	b.WriteString("ℹ️ *BANTUAN*\n\n")
	b.WriteString("• *menu* — kembali ke menu utama\n")
	b.WriteString("• *cart* — lihat isi keranjang\n")
	b.WriteString("• *checkout* — lanjut ke pembayaran\n")
	b.WriteString("• *clear* — kosongkan keranjang\n")
	b.WriteString("• *promo <kode>* — pakai kode promo saat checkout\n")
	b.WriteString("• *history* — riwayat pembelian\n\n")
	b.WriteString("Ketik nama produk saat melihat katalog untuk menambah ke keranjang.")
	return b.String()
}

// formatIDR печатает сумму в рупиях с точками-разделителями тысяч.
func formatIDR(amount int64) string {
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return "Rp " + b.String()
}

func formatCatalog(products []domain.Product, idrRate int64) string {
	var b strings.Builder
	b.WriteString("🛍️ *KATALOG PRODUK* 🛍️\n")
	for _, p := range products {
		b.WriteString("\n*")
		b.WriteString(p.Name)
		b.WriteString("*\n")
		if p.Description != "" {
			b.WriteString(p.Description)
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("💰 Harga: %s\n", formatIDR(p.PriceUSD*idrRate)))
		b.WriteString(fmt.Sprintf("📦 Stok: %d tersedia\n", p.Stock))
	}
	b.WriteString("\nKetik *nama produk* untuk menambah ke keranjang.\n")
	b.WriteString("Ketik *cart* untuk lihat keranjang.")
	return b.String()
}

func formatCart(session domain.Session, idrRate int64) string {
	var b strings.Builder
	b.WriteString("🛒 *KERANJANG ANDA*\n")
	for i, line := range session.Cart {
		b.WriteString(fmt.Sprintf("\n%d. %s — %s", i+1, line.Name, formatIDR(line.PriceUSD*idrRate)))
	}
	b.WriteString("\n\n")

	total := session.CartTotalUSD()
	if session.DiscountPercent > 0 {
		discounted := session.DiscountedTotalUSD()
		b.WriteString(fmt.Sprintf("Subtotal: %s\n", formatIDR(total*idrRate)))
		b.WriteString(fmt.Sprintf("🎁 Promo %s (−%d%%): −%s\n",
			session.PromoCode, session.DiscountPercent, formatIDR((total-discounted)*idrRate)))
		b.WriteString(fmt.Sprintf("💰 *Total: %s*\n", formatIDR(discounted*idrRate)))
	} else {
		b.WriteString(fmt.Sprintf("💰 *Total: %s*\n", formatIDR(total*idrRate)))
	}
	b.WriteString("\nKetik *checkout* untuk lanjut ke pembayaran.\n")
	b.WriteString("Ketik *clear* untuk mengosongkan keranjang.")
	return b.String()
}

func formatPaymentMenu(options []paymentOption) string {
	var b strings.Builder
	b.WriteString("💳 *PILIH METODE PEMBAYARAN*\n\n")
	for i, opt := range options {
		b.WriteString(fmt.Sprintf("%d️⃣ %s\n", i+1, opt.label))
	}
	b.WriteString("\nBalas dengan nomor pilihan Anda.")
	return b.String()
}

func formatBankMenu(banks []BankAccount) string {
	var b strings.Builder
	b.WriteString("🏦 *PILIH BANK TUJUAN*\n\n")
	for i, bank := range banks {
		b.WriteString(fmt.Sprintf("%d️⃣ %s\n", i+1, bank.Bank))
	}
	b.WriteString("\nBalas dengan nomor pilihan Anda.")
	return b.String()
}

func formatBankInstructions(bank BankAccount, orderID string, totalUSD, idrRate int64) string {
	var b strings.Builder
	b.WriteString("🏦 *INSTRUKSI TRANSFER*\n\n")
	b.WriteString(fmt.Sprintf("Bank: %s\n", bank.Bank))
	b.WriteString(fmt.Sprintf("No. Rekening: %s\n", bank.AccountNumber))
	b.WriteString(fmt.Sprintf("Atas Nama: %s\n", bank.AccountName))
	b.WriteString(fmt.Sprintf("Jumlah: *%s*\n", formatIDR(totalUSD*idrRate)))
	b.WriteString(fmt.Sprintf("Order ID: %s\n\n", orderID))
	b.WriteString("Setelah transfer, kirim bukti pembayaran dengan:\n")
	b.WriteString("*proof <keterangan>*\n\n")
	b.WriteString("Admin akan memverifikasi pembayaran Anda.")
	return b.String()
}

func formatManualPaymentInstructions(method domain.PaymentMethod, orderID string, totalUSD, idrRate int64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📱 *PEMBAYARAN VIA %s*\n\n", method))
	b.WriteString(fmt.Sprintf("Jumlah: *%s*\n", formatIDR(totalUSD*idrRate)))
	b.WriteString(fmt.Sprintf("Order ID: %s\n\n", orderID))
	b.WriteString("Setelah membayar, kirim bukti pembayaran dengan:\n")
	b.WriteString("*proof <keterangan>*\n\n")
	b.WriteString("Admin akan memverifikasi pembayaran Anda.")
	return b.String()
}

func formatQRISInvoice(invoice domain.Invoice, orderID string, idrRate int64) string {
	var b strings.Builder
	b.WriteString("📲 *PEMBAYARAN QRIS*\n\n")
	b.WriteString(fmt.Sprintf("Jumlah: *%s*\n", formatIDR(invoice.AmountUSD*idrRate)))
	b.WriteString(fmt.Sprintf("Order ID: %s\n", orderID))
	b.WriteString(fmt.Sprintf("Invoice: %s\n\n", invoice.ID))
	b.WriteString("Scan kode QR berikut:\n")
	b.WriteString(invoice.QRString)
	b.WriteString("\n\nKetik *status* untuk cek status pembayaran.")
	return b.String()
}

func formatHistory(records []domain.SoldRecord) string {
	if len(records) == 0 {
		return textNoHistory
	}
	var b strings.Builder
	b.WriteString("📋 *RIWAYAT PEMBELIAN*\n")
	for _, rec := range records {
		b.WriteString(fmt.Sprintf("\n• %s — %s (%s)",
			rec.SoldAt.Format("2006-01-02"), rec.ProductID, rec.OrderID))
	}
	return b.String()
}

func formatDelivery(orderID string, records []domain.SoldRecord) string {
	var b strings.Builder
	b.WriteString("🎉 *PESANAN ANDA TELAH DIKONFIRMASI!* 🎉\n\n")
	b.WriteString(fmt.Sprintf("Order ID: %s\n", orderID))
	for _, rec := range records {
		b.WriteString(fmt.Sprintf("\n📦 *%s*\n", rec.ProductID))
		b.WriteString("```")
		b.WriteString(rec.Credential)
		b.WriteString("```\n")
	}
	b.WriteString("\nTerima kasih sudah berbelanja! 🙏")
	return b.String()
}

// errorText переводит доменную ошибку в безопасный для клиента текст.
// Никакая внутренняя ошибка не должна уходить клиенту как есть.
func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return textProductNotFound
	case errors.Is(err, domain.ErrCartFull):
		return textCartFull
	case errors.Is(err, domain.ErrPromoNotFound),
		errors.Is(err, domain.ErrPromoBadFormat):
		return "❌ Kode promo tidak ditemukan."
	case errors.Is(err, domain.ErrPromoInactive):
		return "❌ Kode promo sudah tidak aktif."
	case errors.Is(err, domain.ErrPromoExpired):
		return "❌ Kode promo sudah kedaluwarsa."
	case errors.Is(err, domain.ErrPromoExhausted):
		return "❌ Kode promo sudah mencapai batas penggunaan."
	case errors.Is(err, domain.ErrPromoAlreadyUsed):
		return "❌ Anda sudah pernah memakai kode promo ini."
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return textGatewayError
	case errors.Is(err, domain.ErrUnauthorized):
		return textUnauthorized
	default:
		return textSystemError
	}
}

// approvalErrorText строит ответ админу на неудавшийся /approve.
func approvalErrorText(orderID string, err error) string {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return fmt.Sprintf("❌ Order *%s* tidak ditemukan.", orderID)
	case errors.Is(err, domain.ErrOrderNotPending):
		return fmt.Sprintf("❌ Order *%s* tidak sedang menunggu approval.", orderID)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return fmt.Sprintf(
			"⚠️ *Gagal verifikasi pembayaran untuk %s*\n\nSilakan cek manual di dashboard payment gateway.", orderID)
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		return fmt.Sprintf(
			"❌ *Pembayaran belum berhasil*\n\nOrder: %s\n\nTidak bisa approve sebelum pembayaran sukses.", orderID)
	default:
		return textSystemError
	}
}
