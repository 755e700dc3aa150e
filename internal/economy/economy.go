// Package economy holds the store's currency balance and day counter.
package economy

import (
	"fmt"
	"math"
	"sync"

	"shelfcore/pkg/domain"
)

// Wallet is the player's money. Amounts are rounded to cents.
type Wallet struct {
	mu      sync.Mutex
	balance float64
}

// NewWallet returns a wallet holding balance.
func NewWallet(balance float64) *Wallet {
	return &Wallet{balance: cents(balance)}
}

func cents(v float64) float64 { return math.Round(v*100) / 100 }

// Balance returns the current amount.
func (w *Wallet) Balance() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// CanAfford reports whether amount can be spent.
func (w *Wallet) CanAfford(amount float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return amount >= 0 && cents(amount) <= w.balance
}

// Spend removes amount or fails with domain.ErrInsufficient leaving the balance unchanged.
func (w *Wallet) Spend(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("spend %.2f: negative amount", amount)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if cents(amount) > w.balance {
		return fmt.Errorf("spend %.2f with %.2f: %w", amount, w.balance, domain.ErrInsufficient)
	}
	w.balance = cents(w.balance - amount)
	return nil
}

// Add credits amount.
func (w *Wallet) Add(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("add %.2f: negative amount", amount)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = cents(w.balance + amount)
	return nil
}

// Set overwrites the balance, as done when a save is loaded.
func (w *Wallet) Set(balance float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = cents(balance)
}

// Calendar counts in-game days starting at 1.
type Calendar struct {
	mu  sync.Mutex
	day int
}

// NewCalendar starts on day (minimum 1).
func NewCalendar(day int) *Calendar {
	if day < 1 {
		day = 1
	}
	return &Calendar{day: day}
}

// Day returns the current day.
func (c *Calendar) Day() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// Advance moves to the next day and returns it.
func (c *Calendar) Advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day++
	return c.day
}

// Set overwrites the day. Values below 1 clamp to 1.
func (c *Calendar) Set(day int) {
	if day < 1 {
		day = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = day
}
