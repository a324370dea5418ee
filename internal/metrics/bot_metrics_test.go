package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewBotMetricsWithCustomRegisterer(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := newBotMetricsWithRegisterer(registry)
	if m == nil {
		t.Fatal("expected metrics instance")
	}

	m.RecordMessageHandled("customer")
	m.RecordStepTransition("browsing")
	m.RecordDispenseSuccess()
	m.RecordDispenseEmpty()
	m.RecordApproval("approved")
	m.RecordDelivery()
	m.RecordOutboxEvent()
	m.RecordHandleDuration(10 * time.Millisecond)
	m.SetActiveSessions(3)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestNewBotMetricsIdempotentRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newBotMetricsWithRegisterer(registry)
	second := newBotMetricsWithRegisterer(registry)

	// повторная регистрация возвращает уже существующие коллекторы
	if first.dispenseSuccess != second.dispenseSuccess {
		t.Fatal("expected the same counter instance on re-registration")
	}
}
