package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func TestApprove_DeliversAndResetsSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inventory.AddCredentials("netflix", "acc@mail.com:secret1", "admin-1")
	require.NoError(t, err)

	orderID := env.toAwaitingApproval(t, "628111")

	reply := env.router.Route(context.Background(), "admin-1", "/approve "+orderID)
	delivery, ok := reply.(domain.DeliveryReply)
	require.True(t, ok, "expected DeliveryReply, got %T", reply)
	require.Equal(t, "628111", delivery.CustomerID)
	require.Contains(t, delivery.CustomerText, "acc@mail.com:secret1")
	require.Contains(t, delivery.CustomerText, orderID)
	require.Contains(t, delivery.Text, "disetujui")

	session := env.session(t, "628111")
	require.Equal(t, domain.StepMenu, session.Step)
	require.Empty(t, session.Cart)

	// проданная запись ушла из очереди
	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// и попала в журнал продаж
	records, err := env.inventory.SalesByCustomer("628111", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, orderID, records[0].OrderID)
}

func TestApprove_OutOfStockLeavesSessionUnchanged(t *testing.T) {
	env := newTestEnv(t)

	orderID := env.toAwaitingApproval(t, "628111")

	reply := routeText(t, env, "admin-1", "/approve "+orderID)
	require.Contains(t, reply, "Pengiriman gagal")

	session := env.session(t, "628111")
	require.Equal(t, domain.StepAwaitingApproval, session.Step)
	require.Len(t, session.Cart, 1)
}

func TestApprove_PartialStockRollsBack(t *testing.T) {
	env := newTestEnv(t)

	// netflix есть, spotify нет — выдача должна откатиться целиком
	_, err := env.inventory.AddCredentials("netflix", "only@mail.com:secret", "admin-1")
	require.NoError(t, err)

	env.text(t, "628111", "menu")
	env.text(t, "628111", "1")
	env.text(t, "628111", "netflix")
	env.text(t, "628111", "spotify")
	env.text(t, "628111", "cart")
	env.text(t, "628111", "checkout")
	env.text(t, "628111", "2")

	orderID := env.session(t, "628111").OrderID
	reply := routeText(t, env, "admin-1", "/approve "+orderID)
	require.Contains(t, reply, "Pengiriman gagal")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count, "popped credential must return to the queue head")

	session := env.session(t, "628111")
	require.Equal(t, domain.StepAwaitingApproval, session.Step)
	require.Len(t, session.Cart, 2)
}

// Два админа одновременно подтверждают один оплаченный заказ: ровно
// одна доставка, одна запись в журнале, остаток уменьшается на одну
// позицию корзины.
func TestApprove_ConcurrentAdminsDeliverOnce(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inventory.AddCredentials("netflix", "a1@mail.com:pass", "admin-1")
	require.NoError(t, err)
	_, err = env.inventory.AddCredentials("netflix", "a2@mail.com:pass", "admin-1")
	require.NoError(t, err)

	orderID := env.toAwaitingApproval(t, "628111")

	replies := make([]domain.Reply, 2)
	var wg sync.WaitGroup
	for i, adminID := range []string{"admin-1", "admin-2"} {
		wg.Add(1)
		go func(i int, adminID string) {
			defer wg.Done()
			replies[i] = env.router.Route(context.Background(), adminID, "/approve "+orderID)
		}(i, adminID)
	}
	wg.Wait()

	deliveries := 0
	for _, reply := range replies {
		if _, ok := reply.(domain.DeliveryReply); ok {
			deliveries++
		}
	}
	require.Equal(t, 1, deliveries, "one payment must produce one delivery")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	records, err := env.inventory.SalesByCustomer("628111", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

// Повторный /approve уже доставленного заказа отклоняется: orderID
// сброшен при доставке, заказ больше не находится.
func TestApprove_RepeatedApproveRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inventory.AddCredentials("netflix", "a1@mail.com:pass", "admin-1")
	require.NoError(t, err)
	_, err = env.inventory.AddCredentials("netflix", "a2@mail.com:pass", "admin-1")
	require.NoError(t, err)

	orderID := env.toAwaitingApproval(t, "628111")

	reply := env.router.Route(context.Background(), "admin-1", "/approve "+orderID)
	_, ok := reply.(domain.DeliveryReply)
	require.True(t, ok, "first approve must deliver, got %T", reply)
	require.Empty(t, env.session(t, "628111").OrderID)

	second := routeText(t, env, "admin-1", "/approve "+orderID)
	require.Contains(t, second, "tidak ditemukan")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count, "repeated approve must not dispense again")
}

func TestApprove_GatewayUnavailable(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.inventory.AddCredentials("netflix", "acc@mail.com:secret1", "admin-1")
	require.NoError(t, err)

	env.text(t, "628111", "menu")
	env.text(t, "628111", "1")
	env.text(t, "628111", "netflix")
	env.text(t, "628111", "cart")
	env.text(t, "628111", "checkout")
	env.text(t, "628111", "1") // QRIS, invoice создан

	env.gateway.StatusErr = domain.ErrGatewayUnavailable
	session := env.session(t, "628111")
	require.NoError(t, env.sessions.SetStep("628111", domain.StepAwaitingApproval))

	reply := routeText(t, env, "admin-1", "/approve "+session.OrderID)
	require.Contains(t, reply, "Gagal verifikasi")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestApprove_OrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	reply := routeText(t, env, "admin-1", "/approve ORD-0000000000000")
	require.Contains(t, reply, "tidak ditemukan")
}

func TestApprove_OrderNotPending(t *testing.T) {
	env := newTestEnv(t)

	env.text(t, "628111", "menu")
	env.text(t, "628111", "1")
	env.text(t, "628111", "netflix")
	env.text(t, "628111", "cart")
	env.text(t, "628111", "checkout") // select_payment, оплата ещё не выбрана

	orderID := env.session(t, "628111").OrderID
	reply := routeText(t, env, "admin-1", "/approve "+orderID)
	require.Contains(t, reply, "tidak sedang menunggu")
}

func TestApprove_PaymentNotVerified(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.inventory.AddCredentials("netflix", "acc@mail.com:secret1", "admin-1")
	require.NoError(t, err)

	env.text(t, "628111", "menu")
	env.text(t, "628111", "1")
	env.text(t, "628111", "netflix")
	env.text(t, "628111", "cart")
	env.text(t, "628111", "checkout")
	env.text(t, "628111", "1") // QRIS, invoice создан

	env.gateway.Status = domain.InvoicePending
	session := env.session(t, "628111")
	require.NoError(t, env.sessions.SetStep("628111", domain.StepAwaitingApproval))

	reply := routeText(t, env, "admin-1", "/approve "+session.OrderID)
	require.Contains(t, reply, "belum berhasil")

	// ничего не выдано
	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAdmin_AddStockAndStockReport(t *testing.T) {
	env := newTestEnv(t)

	reply := routeText(t, env, "admin-1", "/addstock netflix fresh@mail.com:pass123")
	require.Contains(t, reply, "sekarang: 1")

	reply = routeText(t, env, "admin-1", "/stock netflix")
	require.Contains(t, reply, "1")

	reply = routeText(t, env, "admin-1", "/stockreport")
	require.Contains(t, reply, "LAPORAN STOK")
	require.Contains(t, reply, "Netflix Premium")
}

// /stock с количеством — перепутанная команда: стоком управляет
// только /addstock, лишний аргумент нельзя молча игнорировать.
func TestAdmin_StockRejectsExtraArgument(t *testing.T) {
	env := newTestEnv(t)

	reply := routeText(t, env, "admin-1", "/stock netflix 5")
	require.Contains(t, reply, "/addstock")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestAdmin_AddStockInvalidCredential(t *testing.T) {
	env := newTestEnv(t)

	reply := routeText(t, env, "admin-1", "/addstock netflix no-separator")
	require.Contains(t, reply, "Gagal menambah stok")

	count, err := env.inventory.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestAdmin_StatsAfterSale(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inventory.AddCredentials("netflix", "acc@mail.com:secret1", "admin-1")
	require.NoError(t, err)
	orderID := env.toAwaitingApproval(t, "628111")
	env.router.Route(context.Background(), "admin-1", "/approve "+orderID)

	reply := routeText(t, env, "admin-1", "/stats")
	require.Contains(t, reply, "LAPORAN PENJUALAN (30 HARI)")
	require.Contains(t, reply, "Total terjual: 1")

	reply = routeText(t, env, "admin-1", "/salesreport 7")
	require.Contains(t, reply, "netflix: 1")
}

func TestAdmin_Status(t *testing.T) {
	env := newTestEnv(t)

	routeText(t, env, "628111", "menu")
	reply := routeText(t, env, "admin-1", "/status")
	require.Contains(t, reply, "STATUS BOT")
	require.Contains(t, reply, "Sesi aktif")
}

func TestAdmin_Broadcast(t *testing.T) {
	env := newTestEnv(t)

	routeText(t, env, "628111", "menu")
	routeText(t, env, "628222", "menu")

	reply := env.router.Route(context.Background(), "admin-1", "/broadcast Promo akhir pekan!")
	broadcast, ok := reply.(domain.BroadcastReply)
	require.True(t, ok, "expected BroadcastReply, got %T", reply)
	require.Equal(t, "Promo akhir pekan!", broadcast.Message)
	require.ElementsMatch(t, []string{"628111", "628222"}, broadcast.Recipients)
	require.NotContains(t, broadcast.Recipients, "admin-1")
}

func TestAdmin_PromoLifecycle(t *testing.T) {
	env := newTestEnv(t)

	reply := routeText(t, env, "admin-1", "/createpromo HEMAT10 10 7 5")
	require.Contains(t, reply, "HEMAT10")
	require.Contains(t, reply, "10%")

	reply = routeText(t, env, "admin-1", "/listpromos")
	require.Contains(t, reply, "HEMAT10")
	require.Contains(t, reply, "aktif")

	reply = routeText(t, env, "admin-1", "/promostats HEMAT10")
	require.Contains(t, reply, "Sisa kuota: 5")

	reply = routeText(t, env, "admin-1", "/deactivatepromo HEMAT10")
	require.Contains(t, reply, "dinonaktifkan")

	reply = routeText(t, env, "admin-1", "/deletepromo HEMAT10")
	require.Contains(t, reply, "dihapus")

	reply = routeText(t, env, "admin-1", "/listpromos")
	require.Contains(t, reply, "Belum ada promo")
}
