package file_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/file"
)

func newQueue(t *testing.T) domain.CredentialQueue {
	t.Helper()

	q, err := file.NewCredentialQueue(t.TempDir())
	if err != nil {
		t.Fatalf("create queue failed: %v", err)
	}
	return q
}

func TestCredentialQueue_FIFO(t *testing.T) {
	q := newQueue(t)

	n, err := q.Push("netflix", []string{"a@mail:pass1", "b@mail:pass2", "c@mail:pass3"})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected length 3 after push, got %d", n)
	}

	for _, want := range []string{"a@mail:pass1", "b@mail:pass2", "c@mail:pass3"} {
		got, ok, err := q.Pop("netflix")
		if err != nil {
			t.Fatalf("pop failed: %v", err)
		}
		if !ok {
			t.Fatal("expected credential, queue is empty")
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}

	if _, ok, _ := q.Pop("netflix"); ok {
		t.Fatal("expected empty queue after draining")
	}
}

func TestCredentialQueue_EmptyPopIsNotError(t *testing.T) {
	q := newQueue(t)

	cred, ok, err := q.Pop("spotify")
	if err != nil {
		t.Fatalf("pop on empty queue failed: %v", err)
	}
	if ok || cred != "" {
		t.Fatalf("expected ok=false and empty credential, got %v %q", ok, cred)
	}
}

func TestCredentialQueue_PushFrontRestoresOrder(t *testing.T) {
	q := newQueue(t)

	if _, err := q.Push("netflix", []string{"c@mail:pass3"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if err := q.PushFront("netflix", []string{"a@mail:pass1", "b@mail:pass2"}); err != nil {
		t.Fatalf("push front failed: %v", err)
	}

	for _, want := range []string{"a@mail:pass1", "b@mail:pass2", "c@mail:pass3"} {
		got, ok, err := q.Pop("netflix")
		if err != nil || !ok {
			t.Fatalf("pop failed: ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestCredentialQueue_ConcurrentPopNoDoubleDispense(t *testing.T) {
	q := newQueue(t)

	const total = 40
	creds := make([]string, 0, total)
	for i := 0; i < total; i++ {
		creds = append(creds, fmt.Sprintf("user%03d@mail.com:secret%03d", i, i))
	}

	if _, err := q.Push("netflix", creds); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	var (
		mu     sync.Mutex
		seen   = make(map[string]bool)
		wg     sync.WaitGroup
		popped int
	)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cred, ok, err := q.Pop("netflix")
			if err != nil || !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[cred] {
				t.Errorf("credential dispensed twice: %q", cred)
			}
			seen[cred] = true
			popped++
		}()
	}
	wg.Wait()

	if popped != total {
		t.Fatalf("expected %d dispensed credentials, got %d", total, popped)
	}
	if n, _ := q.Len("netflix"); n != 0 {
		t.Fatalf("expected empty queue after draining, got %d", n)
	}
}

func TestCredentialQueue_Lens(t *testing.T) {
	q := newQueue(t)

	if _, err := q.Push("netflix", []string{"a:1234567890"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if _, err := q.Push("spotify", []string{"b:1234567890", "c:1234567890"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	lens, err := q.Lens()
	if err != nil {
		t.Fatalf("lens failed: %v", err)
	}
	if lens["netflix"] != 1 || lens["spotify"] != 2 {
		t.Fatalf("unexpected lens: %v", lens)
	}

	// опустевший товар исчезает из сводки
	if _, _, err := q.Pop("netflix"); err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	lens, _ = q.Lens()
	if _, ok := lens["netflix"]; ok {
		t.Fatalf("expected drained product to be absent, got %v", lens)
	}
}
