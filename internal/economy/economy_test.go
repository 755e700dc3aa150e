package economy

import (
	"errors"
	"testing"

	"shelfcore/pkg/domain"
)

func TestWalletSpendAndAdd(t *testing.T) {
	w := NewWallet(50)
	if !w.CanAfford(50) || w.CanAfford(50.01) {
		t.Fatalf("unexpected affordability")
	}
	if err := w.Spend(20.5); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if err := w.Spend(100); !errors.Is(err, domain.ErrInsufficient) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if w.Balance() != 29.5 {
		t.Fatalf("failed spend must not change balance, got %.2f", w.Balance())
	}
	if err := w.Add(0.1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Add(0.2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if w.Balance() != 29.8 {
		t.Fatalf("expected cent rounding, got %v", w.Balance())
	}
	if err := w.Add(-1); err == nil {
		t.Fatalf("expected negative add to fail")
	}
	w.Set(3)
	if w.Balance() != 3 {
		t.Fatalf("set failed")
	}
}

func TestCalendar(t *testing.T) {
	c := NewCalendar(0)
	if c.Day() != 1 {
		t.Fatalf("expected day 1, got %d", c.Day())
	}
	if c.Advance() != 2 {
		t.Fatalf("expected day 2")
	}
	c.Set(-4)
	if c.Day() != 1 {
		t.Fatalf("expected clamp to 1")
	}
}
