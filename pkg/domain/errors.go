package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced entity does not exist.
type ErrNotFound struct {
	Entity NodeKind
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// Interaction errors. They are returned before any mutation happens.
var (
	ErrRegionFull      = errors.New("shelf region has no free slot")
	ErrSlotOccupied    = errors.New("shelf slot already occupied")
	ErrDisplayOccupied = errors.New("display already holds a book")
	ErrInsufficient    = errors.New("insufficient funds")
	ErrInvalidMove     = errors.New("placement blocked")
	ErrCrateOpened     = errors.New("crate already opened")
)
