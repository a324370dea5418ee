package redis_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/redis"
)

func TestCredentialQueue_Redis_FIFO(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("redis is not available for integration tests")
	}
	client, err := redis.NewClient(addr, os.Getenv("REDIS_TEST_PASSWORD"), 0)
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	defer client.Close()

	q := redis.NewCredentialQueue(client)
	productID := fmt.Sprintf("it-fifo-%d", time.Now().UnixNano())

	if _, err := q.Push(productID, []string{"a:1234567890", "b:1234567890"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	defer drain(t, q, productID)

	got, ok, err := q.Pop(productID)
	if err != nil || !ok {
		t.Fatalf("pop failed: ok=%v err=%v", ok, err)
	}
	if got != "a:1234567890" {
		t.Fatalf("expected head of queue, got %q", got)
	}

	if err := q.PushFront(productID, []string{got}); err != nil {
		t.Fatalf("push front failed: %v", err)
	}
	got, ok, _ = q.Pop(productID)
	if !ok || got != "a:1234567890" {
		t.Fatalf("expected restored head, got ok=%v %q", ok, got)
	}
}

func TestSessionStore_Redis_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("redis is not available for integration tests")
	}
	client, err := redis.NewClient(addr, os.Getenv("REDIS_TEST_PASSWORD"), 0)
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	defer client.Close()

	store := redis.NewSessionStore(client, time.Minute, 50)
	customerID := fmt.Sprintf("it-%d", time.Now().UnixNano())

	if err := store.SetStep(customerID, domain.StepBrowsing); err != nil {
		t.Fatalf("set step failed: %v", err)
	}
	if err := store.AppendCartLine(customerID, domain.CartLine{ProductID: "netflix", PriceUSD: 1}); err != nil {
		t.Fatalf("append cart failed: %v", err)
	}

	sess, err := store.Get(customerID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sess.Step != domain.StepBrowsing {
		t.Fatalf("expected step %q, got %q", domain.StepBrowsing, sess.Step)
	}
	if len(sess.Cart) != 1 || sess.Cart[0].ProductID != "netflix" {
		t.Fatalf("unexpected cart: %+v", sess.Cart)
	}
}

func drain(t *testing.T, q domain.CredentialQueue, productID string) {
	t.Helper()
	for {
		_, ok, err := q.Pop(productID)
		if err != nil || !ok {
			return
		}
	}
}
