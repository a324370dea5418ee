package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.AdminIDs = []string{"admin-1"}
	return cfg
}

func TestNewDependencies_FileBackends(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer deps.Close()

	require.NotNil(t, deps.Sessions)
	require.NotNil(t, deps.Queue)
	require.NotNil(t, deps.Ledger)
	require.NotNil(t, deps.Inventory)
	require.NotNil(t, deps.Promos)
	require.NotNil(t, deps.Catalog)
	require.NotNil(t, deps.Router)
	require.NotNil(t, deps.CleanupWorker)
	require.Nil(t, deps.OutboxWorker, "outbox worker requires kafka brokers")
}

// Полный путь через собранный граф: пополнение склада, заказ, approve.
func TestDependencies_EndToEndOrder(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer deps.Close()

	ctx := context.Background()

	reply := deps.Router.Route(ctx, "admin-1", "/addstock netflix cust@mail.com:secret1")
	require.IsType(t, domain.TextReply{}, reply)

	for _, msg := range []string{"menu", "1", "netflix", "cart", "checkout", "2"} {
		deps.Router.Route(ctx, "628111", msg)
	}
	session, err := deps.Sessions.Get("628111")
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitingApproval, session.Step)

	reply = deps.Router.Route(ctx, "admin-1", "/approve "+session.OrderID)
	delivery, ok := reply.(domain.DeliveryReply)
	require.True(t, ok, "expected DeliveryReply, got %T", reply)
	require.Contains(t, delivery.CustomerText, "cust@mail.com:secret1")

	// событие продажи попало в outbox
	stats, err := deps.Outbox.Stats()
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.PendingCount, 1)
}

func TestDependencies_SessionCleanupSweep(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer deps.Close()

	// пустой проход не ошибается
	deps.CleanupWorker.Sweep(context.Background())

	removed, err := deps.Sessions.CleanupExpired()
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}
