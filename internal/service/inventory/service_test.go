package inventory

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/file"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dir := t.TempDir()
	queue, err := file.NewCredentialQueue(dir + "/stock")
	require.NoError(t, err)
	ledger, err := file.NewSalesLedger(dir + "/sold")
	require.NoError(t, err)
	audit := file.NewAuditLog(dir + "/audit.jsonl")

	return NewService(queue, ledger, audit, memory.NewOutboxRepository(), 2, nil)
}

func TestSanitizeProductID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Netflix", "netflix"},
		{"  vcc-basic  ", "vcc-basic"},
		{"../../etc/passwd", "etcpasswd"},
		{"Net Flix!", "netflix"},
		{"snake_case_id", "snake_case_id"},
	}
	for _, tc := range cases {
		got, err := SanitizeProductID(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	_, err := SanitizeProductID("!!!")
	require.ErrorIs(t, err, domain.ErrProductIDEmpty)
}

func TestValidateCredential(t *testing.T) {
	require.NoError(t, ValidateCredential("user@mail.com:password"))
	require.NoError(t, ValidateCredential("4111|12/27|123"))
	require.NoError(t, ValidateCredential("login,secretpass"))

	require.ErrorIs(t, ValidateCredential("   "), domain.ErrCredentialEmpty)
	require.ErrorIs(t, ValidateCredential("nosep-at-all"), domain.ErrCredentialNoSeparator)
	require.ErrorIs(t, ValidateCredential("a:b"), domain.ErrCredentialTooShort)
}

func TestAddAndDispenseFIFO(t *testing.T) {
	svc := newTestService(t)

	count, err := svc.AddCredentials("netflix", "first@mail.com:pass", "admin1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = svc.AddCredentials("netflix", "second@mail.com:pass", "admin1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	cred, ok, err := svc.Dispense("netflix")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first@mail.com:pass", cred)
}

func TestBulkRoundTrip(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.AddBulkCredentials("spotify", []string{
		"a@mail.com:pass1",
		"b@mail.com:pass2",
		"c@mail.com:pass3",
	}, "admin1")
	require.NoError(t, err)
	require.Equal(t, 3, result.ValidCount)
	require.Equal(t, 0, result.InvalidCount)
	require.Equal(t, 3, result.StockCount)

	for _, want := range []string{"a@mail.com:pass1", "b@mail.com:pass2", "c@mail.com:pass3"} {
		cred, ok, err := svc.Dispense("spotify")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, cred)
	}

	_, ok, err := svc.Dispense("spotify")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBulkReportsPerLineErrors(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.AddBulkCredentials("netflix", []string{
		"valid@mail.com:pass",
		"no-separator-here",
		"x:y",
		"",
		"another-bad-one",
	}, "admin1")
	require.NoError(t, err)
	require.Equal(t, 1, result.ValidCount)
	require.Equal(t, 3, result.InvalidCount)
	require.LessOrEqual(t, len(result.Errors), 3)
	require.NotEmpty(t, result.Errors)
}

func TestStockCountInvariant(t *testing.T) {
	svc := newTestService(t)

	adds := 5
	for i := 0; i < adds; i++ {
		_, err := svc.AddCredentials("disney", "user@mail.com:pass", "admin1")
		require.NoError(t, err)
	}

	dispensed := 0
	for i := 0; i < 3; i++ {
		_, ok, err := svc.Dispense("disney")
		require.NoError(t, err)
		if ok {
			dispensed++
		}
	}

	count, err := svc.StockCount("disney")
	require.NoError(t, err)
	require.Equal(t, adds-dispensed, count)
}

func TestConcurrentDispenseNoDouble(t *testing.T) {
	svc := newTestService(t)

	const stock = 10
	const callers = 25
	creds := make([]string, 0, stock)
	for i := 0; i < stock; i++ {
		creds = append(creds, "user"+string(rune('a'+i))+"@mail.com:pass")
	}
	_, err := svc.AddBulkCredentials("vcc-basic", creds, "admin1")
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		got  int
		nils int
		wg   sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, ok, err := svc.Dispense("vcc-basic")

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("dispense failed: %v", err)
				return
			}
			if !ok {
				nils++
				return
			}
			if seen[cred] {
				t.Errorf("credential dispensed twice: %s", cred)
			}
			seen[cred] = true
			got++
		}()
	}
	wg.Wait()

	require.Equal(t, stock, got)
	require.Equal(t, callers-stock, nils)

	count, err := svc.StockCount("vcc-basic")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestDispenseOrderAllOrNothing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddCredentials("netflix", "n1@mail.com:pass", "admin1")
	require.NoError(t, err)
	// spotify намеренно без остатка

	lines := []domain.CartLine{
		{ProductID: "netflix", Name: "Netflix", PriceUSD: 1},
		{ProductID: "spotify", Name: "Spotify", PriceUSD: 1},
	}
	_, err = svc.DispenseOrder("ORD-1700000000000", "628111", lines)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrOutOfStock))

	// снятая netflix-запись вернулась в голову очереди
	count, err := svc.StockCount("netflix")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	cred, ok, err := svc.Dispense("netflix")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "n1@mail.com:pass", cred)
}

func TestDispenseOrderSuccessArchives(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddCredentials("netflix", "n1@mail.com:pass", "admin1")
	require.NoError(t, err)
	_, err = svc.AddCredentials("spotify", "s1@mail.com:pass", "admin1")
	require.NoError(t, err)

	lines := []domain.CartLine{
		{ProductID: "netflix", Name: "Netflix", PriceUSD: 1},
		{ProductID: "spotify", Name: "Spotify", PriceUSD: 1},
	}
	records, err := svc.DispenseOrder("ORD-1700000000000", "628111", lines)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		require.Contains(t, rec.TransactionID, "TXN-")
		require.Equal(t, "ORD-1700000000000", rec.OrderID)
		require.Equal(t, "628111", rec.CustomerID)
	}

	report, err := svc.SalesReport(1)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalSales)
	require.Equal(t, 1, report.ByProduct["netflix"])
	require.Equal(t, 1, report.ByProduct["spotify"])
}

// Складские операции публикуют события через outbox под именами из
// доменного словаря: пополнение, низкий остаток, продажа, доставка.
func TestOutboxEventsUseDomainVocabulary(t *testing.T) {
	dir := t.TempDir()
	queue, err := file.NewCredentialQueue(dir + "/stock")
	require.NoError(t, err)
	ledger, err := file.NewSalesLedger(dir + "/sold")
	require.NoError(t, err)
	repo := memory.NewOutboxRepository()
	svc := NewService(queue, ledger, file.NewAuditLog(dir+"/audit.jsonl"), repo, 2, nil)

	_, err = svc.AddCredentials("netflix", "n1@mail.com:pass", "admin1")
	require.NoError(t, err)

	lines := []domain.CartLine{{ProductID: "netflix", Name: "Netflix", PriceUSD: 1}}
	records, err := svc.DispenseOrder("ORD-1700000000000", "628111", lines)
	require.NoError(t, err)
	svc.RecordDelivery("ORD-1700000000000", "628111", len(records))

	pending, err := repo.PullPending(10)
	require.NoError(t, err)

	types := make([]string, 0, len(pending))
	for _, msg := range pending {
		require.Equal(t, "inventory", msg.AggregateType)
		types = append(types, msg.EventType)
	}
	require.Contains(t, types, domain.EventStockAdded)
	require.Contains(t, types, domain.EventStockLow) // остаток 0 ≤ порога 2
	require.Contains(t, types, domain.EventSaleCompleted)
	require.Contains(t, types, domain.EventDeliverySent)
}

func TestConcurrentOrdersScarceStock(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddBulkCredentials("vcc-basic", []string{
		"v1@mail.com:pass",
		"v2@mail.com:pass",
	}, "admin1")
	require.NoError(t, err)

	lines := []domain.CartLine{{ProductID: "vcc-basic", Name: "VCC Basic", PriceUSD: 3}}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered []string
		failed    int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			records, err := svc.DispenseOrder("ORD-order", "customer", lines)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			delivered = append(delivered, records[0].Credential)
		}(i)
	}
	wg.Wait()

	// ровно две успешные доставки с разными учётными записями
	require.Len(t, delivered, 2)
	require.Equal(t, 1, failed)
	require.NotEqual(t, delivered[0], delivered[1])
}
