package scene

import (
	"fmt"
	"math"

	"shelfcore/pkg/domain"
)

// Book is a single placed or loose book instance.
type Book struct {
	ID         NodeID
	BookID     string
	Definition domain.BookDefinition
	Prefab     domain.Prefab
	Placement  domain.Placement
	Physics    domain.Physics
}

var _ domain.Definable = (*Book)(nil)

// ApplyDefinition replaces the book's metadata with def.
func (b *Book) ApplyDefinition(def domain.BookDefinition) {
	b.Definition = def.Clone()
	if def.ID != "" {
		b.BookID = def.ID
	}
}

// Title returns the book's display title.
func (b *Book) Title() string { return b.Definition.Title }

// StackGroup is an ordered same-title pile rooted at its own node.
type StackGroup struct {
	ID        NodeID
	Context   domain.StackContext
	Thickness float64
	MaxHeight int
	Title     string
	Members   []NodeID
}

// Count returns the number of books in the group.
func (g *StackGroup) Count() int { return len(g.Members) }

// Full reports whether the group reached its max height.
func (g *StackGroup) Full() bool { return g.MaxHeight > 0 && len(g.Members) >= g.MaxHeight }

// IndexOf returns the position of a member or -1.
func (g *StackGroup) IndexOf(id NodeID) int {
	for i, m := range g.Members {
		if m == id {
			return i
		}
	}
	return -1
}

func (g *StackGroup) remove(id NodeID) bool {
	if i := g.IndexOf(id); i >= 0 {
		g.Members = append(g.Members[:i], g.Members[i+1:]...)
		return true
	}
	return false
}

// Shelf is a freeform bookshelf. ObjectID is stable across save and load.
type Shelf struct {
	ID       NodeID
	ObjectID string
	Template string
	Regions  []NodeID
}

// Region is a named placement volume of a shelf. Slots hold the occupant node (a
// book or a stack root) of each position, zero when free.
type Region struct {
	ID      NodeID
	Shelf   NodeID
	Name    string
	Size    domain.Vec3
	Spacing float64
	Slots   []NodeID
}

// Capacity returns the number of slots.
func (g *Region) Capacity() int { return len(g.Slots) }

// SlotLocal returns the local position of a slot, left to right along X on the
// region floor.
func (g *Region) SlotLocal(index int) domain.Vec3 {
	return domain.Vec3{
		X: -g.Size.X/2 + g.Spacing*(float64(index)+0.5),
		Y: -g.Size.Y / 2,
	}
}

// Anchor is a flat placement surface such as a table.
type Anchor struct {
	ID       NodeID
	ObjectID string
	Size     domain.Vec3
}

// Display is a mount point holding at most one book.
type Display struct {
	ID       NodeID
	ObjectID string
	Book     NodeID
}

// Crate is a delivery box of books.
type Crate struct {
	ID       NodeID
	ObjectID string
	Opened   bool
	Contents []string
}

// Terminal is the checkout terminal.
type Terminal struct {
	ID       NodeID
	ObjectID string
}

// NewBook spawns a loose book node at a world pose.
func (r *Registry) NewBook(def domain.BookDefinition, prefab domain.Prefab, world domain.Transform) (*Book, error) {
	id, err := r.CreateWorld(domain.KindBook, def.Title, 0, world)
	if err != nil {
		return nil, err
	}
	b := &Book{ID: id, Prefab: prefab, Physics: domain.Free()}
	b.ApplyDefinition(def)
	r.books[id] = b
	return b, nil
}

// NewStack creates an empty stack group whose root sits at a world pose under parent.
func (r *Registry) NewStack(ctx domain.StackContext, parent NodeID, world domain.Transform, thickness float64, maxHeight int) (*StackGroup, error) {
	id, err := r.CreateWorld(domain.KindStack, "Stack", parent, world)
	if err != nil {
		return nil, err
	}
	g := &StackGroup{ID: id, Context: ctx, Thickness: thickness, MaxHeight: maxHeight}
	r.stacks[id] = g
	return g, nil
}

// NewShelf creates the root node of a shelf. Regions are added with NewRegion.
func (r *Registry) NewShelf(objectID, template string, world domain.Transform) (*Shelf, error) {
	id, err := r.CreateWorld(domain.KindShelf, template, 0, world)
	if err != nil {
		return nil, err
	}
	s := &Shelf{ID: id, ObjectID: objectID, Template: template}
	r.shelves[id] = s
	return s, nil
}

// NewRegion adds a region node under parent, which must be the shelf or one of its parts.
func (r *Registry) NewRegion(shelf *Shelf, parent NodeID, name string, local domain.Transform, size domain.Vec3, spacing float64) (*Region, error) {
	if shelf == nil {
		return nil, fmt.Errorf("new region %q: nil shelf", name)
	}
	if parent != shelf.ID && !r.IsAncestor(shelf.ID, parent) {
		return nil, fmt.Errorf("new region %q: parent %d outside shelf %d", name, parent, shelf.ID)
	}
	id, err := r.Create(domain.KindRegion, name, parent, local)
	if err != nil {
		return nil, err
	}
	capacity := 1
	if spacing > 0 {
		capacity = int(math.Floor(size.X/spacing + 1e-9))
		if capacity < 1 {
			capacity = 1
		}
	}
	g := &Region{ID: id, Shelf: shelf.ID, Name: name, Size: size, Spacing: spacing, Slots: make([]NodeID, capacity)}
	r.regions[id] = g
	shelf.Regions = append(shelf.Regions, id)
	return g, nil
}

// NewAnchor creates a surface anchor.
func (r *Registry) NewAnchor(objectID, name string, world domain.Transform, size domain.Vec3) (*Anchor, error) {
	id, err := r.CreateWorld(domain.KindAnchor, name, 0, world)
	if err != nil {
		return nil, err
	}
	a := &Anchor{ID: id, ObjectID: objectID, Size: size}
	r.anchors[id] = a
	return a, nil
}

// NewDisplay creates a display, optionally parented to an anchor.
func (r *Registry) NewDisplay(objectID string, parent NodeID, world domain.Transform) (*Display, error) {
	id, err := r.CreateWorld(domain.KindDisplay, "Display", parent, world)
	if err != nil {
		return nil, err
	}
	d := &Display{ID: id, ObjectID: objectID}
	r.displays[id] = d
	return d, nil
}

// NewCrate creates a book crate.
func (r *Registry) NewCrate(objectID string, world domain.Transform, contents []string, opened bool) (*Crate, error) {
	id, err := r.CreateWorld(domain.KindCrate, "BookCrate", 0, world)
	if err != nil {
		return nil, err
	}
	c := &Crate{ID: id, ObjectID: objectID, Opened: opened, Contents: append([]string(nil), contents...)}
	r.crates[id] = c
	return c, nil
}

// SetTerminal creates the checkout terminal, replacing any existing one.
func (r *Registry) SetTerminal(objectID string, world domain.Transform) (*Terminal, error) {
	if r.terminal != nil {
		r.Destroy(r.terminal.ID)
	}
	id, err := r.CreateWorld(domain.KindTerminal, "Terminal", 0, world)
	if err != nil {
		return nil, err
	}
	r.terminal = &Terminal{ID: id, ObjectID: objectID}
	return r.terminal, nil
}

// Book returns a book by node ID.
func (r *Registry) Book(id NodeID) (*Book, bool) {
	b, ok := r.books[id]
	return b, ok
}

// Stack returns a stack group by root node ID.
func (r *Registry) Stack(id NodeID) (*StackGroup, bool) {
	g, ok := r.stacks[id]
	return g, ok
}

// Shelf returns a shelf by node ID.
func (r *Registry) Shelf(id NodeID) (*Shelf, bool) {
	s, ok := r.shelves[id]
	return s, ok
}

// Region returns a region by node ID.
func (r *Registry) Region(id NodeID) (*Region, bool) {
	g, ok := r.regions[id]
	return g, ok
}

// Anchor returns an anchor by node ID.
func (r *Registry) Anchor(id NodeID) (*Anchor, bool) {
	a, ok := r.anchors[id]
	return a, ok
}

// Display returns a display by node ID.
func (r *Registry) Display(id NodeID) (*Display, bool) {
	d, ok := r.displays[id]
	return d, ok
}

// Crate returns a crate by node ID.
func (r *Registry) Crate(id NodeID) (*Crate, bool) {
	c, ok := r.crates[id]
	return c, ok
}

// Terminal returns the checkout terminal if one exists.
func (r *Registry) Terminal() (*Terminal, bool) { return r.terminal, r.terminal != nil }

// StackOf returns the group a book belongs to.
func (r *Registry) StackOf(b *Book) (*StackGroup, bool) {
	if b == nil || b.Placement.Kind != domain.PlacementStack {
		return nil, false
	}
	return r.Stack(b.Placement.Container)
}

// Books lists books ordered by node ID.
func (r *Registry) Books() []*Book {
	out := make([]*Book, 0, len(r.books))
	for _, id := range sortedIDs(r.books) {
		out = append(out, r.books[id])
	}
	return out
}

// Stacks lists stack groups ordered by root node ID.
func (r *Registry) Stacks() []*StackGroup {
	out := make([]*StackGroup, 0, len(r.stacks))
	for _, id := range sortedIDs(r.stacks) {
		out = append(out, r.stacks[id])
	}
	return out
}

// Shelves lists shelves ordered by node ID.
func (r *Registry) Shelves() []*Shelf {
	out := make([]*Shelf, 0, len(r.shelves))
	for _, id := range sortedIDs(r.shelves) {
		out = append(out, r.shelves[id])
	}
	return out
}

// ShelvesByObjectID returns every shelf carrying objectID. More than one result
// indicates a duplicated instance.
func (r *Registry) ShelvesByObjectID(objectID string) []*Shelf {
	var out []*Shelf
	for _, s := range r.Shelves() {
		if s.ObjectID == objectID {
			out = append(out, s)
		}
	}
	return out
}

// Regions returns the regions of a shelf in registration order.
func (r *Registry) Regions(s *Shelf) []*Region {
	out := make([]*Region, 0, len(s.Regions))
	for _, id := range s.Regions {
		if g, ok := r.regions[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Anchors lists anchors ordered by node ID.
func (r *Registry) Anchors() []*Anchor {
	out := make([]*Anchor, 0, len(r.anchors))
	for _, id := range sortedIDs(r.anchors) {
		out = append(out, r.anchors[id])
	}
	return out
}

// AnchorByObjectID finds an anchor by its persistent ID.
func (r *Registry) AnchorByObjectID(objectID string) (*Anchor, bool) {
	for _, a := range r.Anchors() {
		if a.ObjectID == objectID {
			return a, true
		}
	}
	return nil, false
}

// Displays lists displays ordered by node ID.
func (r *Registry) Displays() []*Display {
	out := make([]*Display, 0, len(r.displays))
	for _, id := range sortedIDs(r.displays) {
		out = append(out, r.displays[id])
	}
	return out
}

// DisplayByObjectID finds a display by its persistent ID.
func (r *Registry) DisplayByObjectID(objectID string) (*Display, bool) {
	for _, d := range r.Displays() {
		if d.ObjectID == objectID {
			return d, true
		}
	}
	return nil, false
}

// Crates lists crates ordered by node ID.
func (r *Registry) Crates() []*Crate {
	out := make([]*Crate, 0, len(r.crates))
	for _, id := range sortedIDs(r.crates) {
		out = append(out, r.crates[id])
	}
	return out
}

// CrateByObjectID finds a crate by its persistent ID.
func (r *Registry) CrateByObjectID(objectID string) (*Crate, bool) {
	for _, c := range r.Crates() {
		if c.ObjectID == objectID {
			return c, true
		}
	}
	return nil, false
}
