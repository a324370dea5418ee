package file_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/storage/file"
)

func soldRecord(txn, productID, customerID string, soldAt time.Time) domain.SoldRecord {
	return domain.SoldRecord{
		TransactionID: txn,
		ProductID:     productID,
		OrderID:       "ORD-1700000000000",
		CustomerID:    customerID,
		Credential:    "user@mail.com:secret",
		SoldAt:        soldAt,
	}
}

func TestSalesLedger_Report(t *testing.T) {
	ledger, err := file.NewSalesLedger(t.TempDir())
	if err != nil {
		t.Fatalf("create ledger failed: %v", err)
	}

	now := time.Now().UTC()
	records := []domain.SoldRecord{
		soldRecord("TXN-1", "netflix", "628111", now.Add(-time.Hour)),
		soldRecord("TXN-2", "netflix", "628111", now.Add(-2*time.Hour)),
		soldRecord("TXN-3", "spotify", "628222", now.Add(-3*time.Hour)),
		soldRecord("TXN-4", "spotify", "628222", now.AddDate(0, 0, -10)),
	}
	for _, rec := range records {
		if err := ledger.Archive(rec); err != nil {
			t.Fatalf("archive failed: %v", err)
		}
	}

	report, err := ledger.Report(7)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.TotalSales != 3 {
		t.Fatalf("expected 3 sales within window, got %d", report.TotalSales)
	}
	if report.ByProduct["netflix"] != 2 || report.ByProduct["spotify"] != 1 {
		t.Fatalf("unexpected per-product totals: %v", report.ByProduct)
	}
}

func TestSalesLedger_ByCustomer(t *testing.T) {
	ledger, err := file.NewSalesLedger(t.TempDir())
	if err != nil {
		t.Fatalf("create ledger failed: %v", err)
	}

	now := time.Now().UTC()
	for i, txn := range []string{"TXN-1", "TXN-2", "TXN-3"} {
		rec := soldRecord(txn, "netflix", "628111", now.Add(-time.Duration(i)*time.Hour))
		if err := ledger.Archive(rec); err != nil {
			t.Fatalf("archive failed: %v", err)
		}
	}
	if err := ledger.Archive(soldRecord("TXN-9", "netflix", "628999", now)); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	sales, err := ledger.ByCustomer("628111", 2)
	if err != nil {
		t.Fatalf("by customer failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sales))
	}
	// новые раньше старых
	if sales[0].TransactionID != "TXN-1" || sales[1].TransactionID != "TXN-2" {
		t.Fatalf("unexpected order: %s, %s", sales[0].TransactionID, sales[1].TransactionID)
	}
}

func TestAuditLog_Record(t *testing.T) {
	dir := t.TempDir()
	audit := file.NewAuditLog(dir + "/audit.jsonl")

	entry := domain.AuditEntry{
		TransactionID: "TXN-1",
		Action:        "dispense",
		Fields:        map[string]string{"product_id": "netflix"},
	}
	if err := audit.Record(entry); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := audit.Record(entry); err != nil {
		t.Fatalf("second record failed: %v", err)
	}
}
