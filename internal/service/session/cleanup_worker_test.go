package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubStore struct {
	mu       sync.Mutex
	removed  int
	err      error
	calls    int
	activeID []string
}

func (s *stubStore) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.removed, s.err
}

func (s *stubStore) ActiveCustomerIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activeID...), nil
}

func (s *stubStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCleanupWorker_Sweep(t *testing.T) {
	t.Parallel()

	store := &stubStore{removed: 3, activeID: []string{"628111"}}
	worker := NewCleanupWorker(store, WithInterval(time.Minute))

	worker.Sweep(context.Background())

	if got := store.callCount(); got != 1 {
		t.Fatalf("expected 1 cleanup call, got %d", got)
	}
}

func TestCleanupWorker_SweepError(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("backend is down")}
	worker := NewCleanupWorker(store, WithInterval(time.Minute))

	// ошибка бэкенда логируется и не роняет воркер
	worker.Sweep(context.Background())
	worker.Sweep(context.Background())

	if got := store.callCount(); got != 2 {
		t.Fatalf("expected 2 cleanup calls, got %d", got)
	}
}

func TestCleanupWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	worker := NewCleanupWorker(store, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if got := store.callCount(); got < 1 {
		t.Fatalf("expected at least 1 cleanup call, got %d", got)
	}
}
