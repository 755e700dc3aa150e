// Package placement implements the player's book interactions: spawning, shelving,
// laying on tables, stacking, mounting on displays and picking up.
//
// Every operation validates before it mutates, so a returned error or a rejected
// AddResult means the scene is unchanged.
package placement

import (
	"fmt"

	"shelfcore/internal/catalog"
	"shelfcore/internal/region"
	"shelfcore/internal/scene"
	"shelfcore/internal/stack"
	"shelfcore/pkg/domain"
)

// Placer performs placement operations against one registry.
type Placer struct {
	reg      *scene.Registry
	engine   *stack.Engine
	resolver *region.Resolver
	catalog  catalog.Catalog
	logger   domain.Logger
}

// New constructs a Placer.
func New(reg *scene.Registry, engine *stack.Engine, resolver *region.Resolver, cat catalog.Catalog, logger domain.Logger) *Placer {
	return &Placer{reg: reg, engine: engine, resolver: resolver, catalog: cat, logger: domain.LoggerOrNoop(logger)}
}

// SpawnBook instantiates a loose copy of the catalog book bookID.
func (p *Placer) SpawnBook(bookID string, world domain.Transform) (*scene.Book, error) {
	def, ok := p.catalog.DefinitionByID(bookID)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.KindBook, ID: bookID}
	}
	prefab, ok := p.catalog.PrefabByID(bookID)
	if !ok {
		return nil, domain.ErrNotFound{Entity: "prefab", ID: bookID}
	}
	b, err := p.reg.NewBook(def, prefab, world)
	if err != nil {
		return nil, fmt.Errorf("spawn book %s: %w", bookID, err)
	}
	p.logger.Debug("book spawned", "book", b.ID, "book_id", bookID)
	return b, nil
}

// PlaceOnShelf puts a book into a region of shelf. index < 0 picks the first free
// slot.
func (p *Placer) PlaceOnShelf(b *scene.Book, shelf *scene.Shelf, regionHint string, index int) error {
	if b == nil || shelf == nil {
		return fmt.Errorf("place on shelf: nil argument")
	}
	res := p.resolver.ResolveRegion(shelf, regionHint)
	g, ok := res.Region(p.reg)
	if !ok {
		return domain.ErrNotFound{Entity: domain.KindRegion, ID: regionHint}
	}
	if index < 0 {
		free, ok := p.reg.FreeSlot(g.ID)
		if !ok {
			return fmt.Errorf("place on shelf %s/%s: %w", shelf.ObjectID, g.Name, domain.ErrRegionFull)
		}
		index = free
	}
	if index >= g.Capacity() {
		return fmt.Errorf("place on shelf: slot %d outside region %q (capacity %d)", index, g.Name, g.Capacity())
	}
	if occ := g.Slots[index]; occ != 0 && occ != b.ID {
		return fmt.Errorf("place on shelf %s/%s slot %d: %w", shelf.ObjectID, g.Name, index, domain.ErrSlotOccupied)
	}
	if err := p.release(b, false); err != nil {
		return err
	}
	if err := p.reg.Reparent(b.ID, g.ID); err != nil {
		return fmt.Errorf("place on shelf: %w", err)
	}
	if err := p.reg.OccupySlot(g.ID, index, b.ID); err != nil {
		return fmt.Errorf("place on shelf: %w", err)
	}
	p.reg.SetLocal(b.ID, domain.At(g.SlotLocal(index)))
	b.Placement = domain.Placement{Kind: domain.PlacementShelf, Container: g.ID, Index: index}
	b.Physics = domain.Frozen()
	p.logger.Debug("book shelved", "book", b.ID, "shelf", shelf.ObjectID, "region", g.Name, "slot", index)
	return nil
}

// PlaceOnTable lays a book on a surface anchor at a position local to it.
func (p *Placer) PlaceOnTable(b *scene.Book, anchor *scene.Anchor, local domain.Vec3) error {
	if b == nil || anchor == nil {
		return fmt.Errorf("place on table: nil argument")
	}
	if !p.reg.Exists(anchor.ID) {
		return domain.ErrNotFound{Entity: domain.KindAnchor, ID: anchor.ObjectID}
	}
	if err := p.release(b, false); err != nil {
		return err
	}
	if err := p.reg.Reparent(b.ID, anchor.ID); err != nil {
		return fmt.Errorf("place on table: %w", err)
	}
	p.reg.SetLocal(b.ID, domain.At(local))
	b.Placement = domain.Placement{Kind: domain.PlacementTable, Container: anchor.ID}
	b.Physics = domain.Frozen()
	p.logger.Debug("book placed on table", "book", b.ID, "table", anchor.ObjectID)
	return nil
}

// StackOnto puts incoming on top of target's stack, creating one when target is loose.
func (p *Placer) StackOnto(target, incoming *scene.Book) (domain.AddResult, error) {
	return p.engine.StackOnto(target, incoming)
}

// AttachToDisplay mounts a book on a display.
func (p *Placer) AttachToDisplay(b *scene.Book, d *scene.Display) error {
	if b == nil || d == nil {
		return fmt.Errorf("attach to display: nil argument")
	}
	if d.Book != 0 && d.Book != b.ID {
		return fmt.Errorf("attach to display %s: %w", d.ObjectID, domain.ErrDisplayOccupied)
	}
	if err := p.release(b, false); err != nil {
		return err
	}
	if err := p.reg.Reparent(b.ID, d.ID); err != nil {
		return fmt.Errorf("attach to display: %w", err)
	}
	p.reg.SetLocal(b.ID, domain.At(domain.Vec3{}))
	if err := p.reg.AttachDisplay(d, b); err != nil {
		return fmt.Errorf("attach to display: %w", err)
	}
	b.Physics = domain.Frozen()
	p.logger.Debug("book displayed", "book", b.ID, "display", d.ObjectID)
	return nil
}

// PickUp takes a book into the player's hands, releasing whatever held it.
func (p *Placer) PickUp(b *scene.Book) error {
	if b == nil {
		return fmt.Errorf("pick up: nil book")
	}
	if err := p.release(b, true); err != nil {
		return err
	}
	if err := p.reg.Reparent(b.ID, 0); err != nil {
		return fmt.Errorf("pick up: %w", err)
	}
	b.Physics = domain.Free()
	return nil
}

// Remove destroys a book, detaching it from its container first.
func (p *Placer) Remove(b *scene.Book) error {
	if err := p.release(b, false); err != nil {
		return err
	}
	p.reg.Destroy(b.ID)
	return nil
}

func (p *Placer) release(b *scene.Book, held bool) error {
	if g, ok := p.reg.StackOf(b); ok {
		if err := p.engine.RemoveBook(g, b, held); err != nil {
			return fmt.Errorf("release book %d: %w", b.ID, err)
		}
		return nil
	}
	p.reg.ClearPlacement(b)
	return nil
}
