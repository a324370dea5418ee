package memory_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

func newLine(id string, price int64) domain.CartLine {
	return domain.CartLine{
		ProductID: id,
		Name:      id,
		PriceUSD:  price,
		Category:  domain.CategoryPremiumAccount,
		AddedAt:   time.Now().UTC(),
	}
}

func TestSessionStore_LazyCreate(t *testing.T) {
	store := memory.NewSessionStore(30*time.Minute, 50)

	sess, err := store.Get("628111")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sess.Step != domain.StepMenu {
		t.Fatalf("expected default step %q, got %q", domain.StepMenu, sess.Step)
	}
	if len(sess.Cart) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(sess.Cart))
	}
}

func TestSessionStore_CartAndClear(t *testing.T) {
	store := memory.NewSessionStore(30*time.Minute, 50)

	if err := store.AppendCartLine("628111", newLine("netflix", 1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.SetPromo("628111", "HEMAT10", 10); err != nil {
		t.Fatalf("set promo failed: %v", err)
	}

	if err := store.ClearCart("628111"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	sess, err := store.Get("628111")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(sess.Cart) != 0 {
		t.Fatalf("expected cart cleared, got %d lines", len(sess.Cart))
	}
	if sess.PromoCode != "" || sess.DiscountPercent != 0 {
		t.Fatalf("expected promo reset on clear, got %q/%d", sess.PromoCode, sess.DiscountPercent)
	}
}

func TestSessionStore_CartLimit(t *testing.T) {
	store := memory.NewSessionStore(30*time.Minute, 2)

	for i := 0; i < 2; i++ {
		if err := store.AppendCartLine("628111", newLine("netflix", 1)); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	if err := store.AppendCartLine("628111", newLine("spotify", 1)); err != domain.ErrCartFull {
		t.Fatalf("expected ErrCartFull, got %v", err)
	}
}

func TestSessionStore_FindCustomerByOrderID(t *testing.T) {
	store := memory.NewSessionStore(30*time.Minute, 50)

	if err := store.SetOrderID("628111", "ORD-1700000000000"); err != nil {
		t.Fatalf("set order failed: %v", err)
	}

	customerID, err := store.FindCustomerByOrderID("ORD-1700000000000")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if customerID != "628111" {
		t.Fatalf("expected customer 628111, got %s", customerID)
	}

	if _, err := store.FindCustomerByOrderID("ORD-0000000000000"); err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSessionStore_CopySemantics(t *testing.T) {
	store := memory.NewSessionStore(30*time.Minute, 50)

	if err := store.AppendCartLine("628111", newLine("netflix", 1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	sess, _ := store.Get("628111")
	sess.Cart[0].PriceUSD = 99

	fresh, _ := store.Get("628111")
	if fresh.Cart[0].PriceUSD != 1 {
		t.Fatalf("store state mutated through returned copy: %d", fresh.Cart[0].PriceUSD)
	}
}

func TestSessionStore_CleanupExpired(t *testing.T) {
	store := memory.NewSessionStore(time.Nanosecond, 50)

	if _, err := store.Get("628111"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	removed, err := store.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}

	ids, _ := store.ActiveCustomerIDs()
	if len(ids) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(ids))
	}
}
