package scene

import (
	"fmt"

	"shelfcore/pkg/domain"
)

// OccupySlot records occupant (a book or a stack root) in a region slot.
func (r *Registry) OccupySlot(region NodeID, index int, occupant NodeID) error {
	g, ok := r.regions[region]
	if !ok {
		return domain.ErrNotFound{Entity: domain.KindRegion, ID: fmt.Sprint(region)}
	}
	if index < 0 || index >= len(g.Slots) {
		return fmt.Errorf("slot %d outside region %q (capacity %d)", index, g.Name, len(g.Slots))
	}
	if cur := g.Slots[index]; cur != 0 && cur != occupant {
		return domain.ErrSlotOccupied
	}
	r.ReleaseSlot(occupant)
	g.Slots[index] = occupant
	r.slotOf[occupant] = slotRef{region: region, index: index}
	return nil
}

// ReleaseSlot frees whatever slot occupant holds. It reports whether one was held.
func (r *Registry) ReleaseSlot(occupant NodeID) bool {
	ref, ok := r.slotOf[occupant]
	if !ok {
		return false
	}
	delete(r.slotOf, occupant)
	if g, ok := r.regions[ref.region]; ok && ref.index < len(g.Slots) && g.Slots[ref.index] == occupant {
		g.Slots[ref.index] = 0
	}
	return true
}

// FreeSlot returns the first unoccupied slot of a region.
func (r *Registry) FreeSlot(region NodeID) (int, bool) {
	g, ok := r.regions[region]
	if !ok {
		return 0, false
	}
	for i, occ := range g.Slots {
		if occ == 0 {
			return i, true
		}
	}
	return 0, false
}

// SlotOf returns the region and index held by occupant.
func (r *Registry) SlotOf(occupant NodeID) (NodeID, int, bool) {
	ref, ok := r.slotOf[occupant]
	return ref.region, ref.index, ok
}

// ClearPlacement drops a book's shelf, table or display reference and frees the
// bookkeeping behind it. Stack membership is owned by the stack engine and is left
// untouched; it returns false for stacked books.
func (r *Registry) ClearPlacement(b *Book) bool {
	if b == nil {
		return false
	}
	switch b.Placement.Kind {
	case domain.PlacementStack:
		return false
	case domain.PlacementDisplay:
		if d, ok := r.displays[b.Placement.Container]; ok && d.Book == b.ID {
			d.Book = 0
		}
	case domain.PlacementShelf:
		r.ReleaseSlot(b.ID)
	}
	b.Placement = domain.Placement{}
	return true
}

// AttachDisplay records b as the book mounted on d.
func (r *Registry) AttachDisplay(d *Display, b *Book) error {
	if d.Book != 0 && d.Book != b.ID {
		return domain.ErrDisplayOccupied
	}
	d.Book = b.ID
	b.Placement = domain.Placement{Kind: domain.PlacementDisplay, Container: d.ID}
	return nil
}
