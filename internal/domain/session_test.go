package domain

import (
	"testing"
	"time"
)

func TestCartTotalUSD(t *testing.T) {
	s := NewSession("628111")
	s.Cart = []CartLine{
		{ProductID: "netflix", PriceUSD: 1},
		{ProductID: "vcc-basic", PriceUSD: 3},
	}

	if got := s.CartTotalUSD(); got != 4 {
		t.Fatalf("expected total 4, got %d", got)
	}
}

func TestDiscountedTotalUSD(t *testing.T) {
	s := NewSession("628111")
	s.Cart = []CartLine{
		{ProductID: "netflix", PriceUSD: 10},
	}
	s.DiscountPercent = 25

	// 10 - round(2.5) = 7
	if got := s.DiscountedTotalUSD(); got != 7 {
		t.Fatalf("expected discounted total 7, got %d", got)
	}
}

func TestDiscountedTotalRounding(t *testing.T) {
	s := NewSession("628111")
	s.Cart = []CartLine{{ProductID: "spotify", PriceUSD: 3}}
	s.DiscountPercent = 50

	// round(3*0.5) = 2, итог 1
	if got := s.DiscountedTotalUSD(); got != 1 {
		t.Fatalf("expected discounted total 1, got %d", got)
	}
}

func TestDiscountedTotalNoPromo(t *testing.T) {
	s := NewSession("628111")
	s.Cart = []CartLine{{ProductID: "spotify", PriceUSD: 7}}

	if got := s.DiscountedTotalUSD(); got != 7 {
		t.Fatalf("expected total 7 without promo, got %d", got)
	}
}

func TestSessionExpired(t *testing.T) {
	s := NewSession("628111")
	s.LastActivity = time.Now().UTC().Add(-31 * time.Minute)

	if !s.Expired(30*time.Minute, time.Now().UTC()) {
		t.Fatal("expected session to be expired")
	}
	if s.Expired(60*time.Minute, time.Now().UTC()) {
		t.Fatal("expected session to be alive within a longer window")
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession("628111")

	if s.Step != StepMenu {
		t.Fatalf("expected initial step %q, got %q", StepMenu, s.Step)
	}
	if len(s.Cart) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(s.Cart))
	}
}
