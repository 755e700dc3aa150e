// Package stack implements the stack engine: same-title, height-limited piles of
// books on tables and shelves.
package stack

import (
	"fmt"

	"shelfcore/internal/scene"
	"shelfcore/internal/tasks"
	"shelfcore/pkg/domain"
)

// DefaultMaxHeight is the stack height used when none is configured.
const DefaultMaxHeight = 4

// Config tunes stack geometry.
type Config struct {
	MaxHeight      int     `yaml:"max_height" validate:"gte=0"`
	TableThickness float64 `yaml:"table_thickness" validate:"gte=0"`
	ShelfThickness float64 `yaml:"shelf_thickness" validate:"gte=0"`
}

// DefaultConfig returns the stock stack settings.
func DefaultConfig() Config {
	return Config{MaxHeight: DefaultMaxHeight, TableThickness: 0.04, ShelfThickness: 0.04}
}

// Engine decides whether books may stack and lays out stack members.
type Engine struct {
	reg    *scene.Registry
	queue  *tasks.Queue
	cfg    Config
	logger domain.Logger
}

// NewEngine constructs an engine. Zero config fields fall back to DefaultConfig.
func NewEngine(reg *scene.Registry, queue *tasks.Queue, cfg Config, logger domain.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.TableThickness <= 0 {
		cfg.TableThickness = def.TableThickness
	}
	if cfg.ShelfThickness <= 0 {
		cfg.ShelfThickness = def.ShelfThickness
	}
	return &Engine{reg: reg, queue: queue, cfg: cfg, logger: domain.LoggerOrNoop(logger)}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// CanStack reports whether incoming may join the stack that representative belongs
// to (or start one with it when representative is loose): titles must match after
// trimming and case folding, and the stack must be below its max height.
func (e *Engine) CanStack(representative, incoming *scene.Book) bool {
	if representative == nil || incoming == nil || representative.ID == incoming.ID {
		return false
	}
	if !domain.SameTitle(representative.Title(), incoming.Title()) {
		return false
	}
	count, limit := 1, e.cfg.MaxHeight
	if g, ok := e.reg.StackOf(representative); ok {
		if g.IndexOf(incoming.ID) >= 0 {
			return false
		}
		count, limit = g.Count(), g.MaxHeight
	}
	return count < limit
}

func (e *Engine) thicknessFor(ctx domain.StackContext, prefab domain.Prefab) float64 {
	if prefab.Thickness > 0 {
		return prefab.Thickness
	}
	if ctx == domain.StackOnShelf {
		return e.cfg.ShelfThickness
	}
	return e.cfg.TableThickness
}

// NewGroup creates an empty stack whose root sits at world under parent. The
// thickness comes from prefab when it declares one.
func (e *Engine) NewGroup(ctx domain.StackContext, parent scene.NodeID, world domain.Transform, prefab domain.Prefab) (*scene.StackGroup, error) {
	g, err := e.reg.NewStack(ctx, parent, world, e.thicknessFor(ctx, prefab), e.cfg.MaxHeight)
	if err != nil {
		return nil, fmt.Errorf("new stack group: %w", err)
	}
	return g, nil
}

// axis returns the stack growth direction in the root's local space: world up for
// tables, root-local up for shelves.
func (e *Engine) axis(g *scene.StackGroup) domain.Vec3 {
	if g.Context == domain.StackOnShelf {
		return domain.Up
	}
	return e.reg.World(g.ID).Rotation.Inverse().Rotate(domain.Up)
}

func (e *Engine) layout(g *scene.StackGroup, index int) domain.Transform {
	return domain.Transform{Position: e.axis(g).Scale(g.Thickness * float64(index)), Rotation: domain.Identity}
}

// AddBook appends book to the group. Rejections leave every entity untouched and are
// reported through the result tag.
func (e *Engine) AddBook(g *scene.StackGroup, b *scene.Book) domain.AddResult {
	if g == nil || b == nil || !e.reg.Exists(g.ID) || !e.reg.Exists(b.ID) {
		return domain.RejectedInvalid
	}
	if g.IndexOf(b.ID) >= 0 {
		return domain.RejectedAlreadyMember
	}
	if g.Count() > 0 && !domain.SameTitle(g.Title, b.Title()) {
		return domain.RejectedTitleMismatch
	}
	if g.Full() {
		return domain.RejectedFull
	}
	if err := e.release(b); err != nil {
		e.logger.Warn("release book before stacking", "book", b.ID, "error", err)
		return domain.RejectedInvalid
	}
	if err := e.reg.Reparent(b.ID, g.ID); err != nil {
		e.logger.Warn("parent book under stack", "book", b.ID, "stack", g.ID, "error", err)
		return domain.RejectedInvalid
	}
	if g.Count() == 0 {
		g.Title = b.Title()
	}
	g.Members = append(g.Members, b.ID)
	index := g.Count() - 1
	e.reg.SetLocal(b.ID, e.layout(g, index))
	b.Placement = domain.Placement{Kind: domain.PlacementStack, Container: g.ID, Index: index}
	b.Physics = domain.Frozen()
	e.logger.Debug("book stacked", "book", b.ID, "stack", g.ID, "index", index)
	return domain.Added
}

// release detaches a book from whatever held it before it joins a stack.
func (e *Engine) release(b *scene.Book) error {
	if cur, ok := e.reg.StackOf(b); ok {
		return e.RemoveBook(cur, b, false)
	}
	e.reg.ClearPlacement(b)
	return nil
}

// RemoveBook detaches book from the group keeping its world pose, closes the gap
// left behind and destroys the group once it is empty. When held is true the book
// is in the player's hands and the emptiness check runs one tick later so the
// interaction still using the group can finish.
func (e *Engine) RemoveBook(g *scene.StackGroup, b *scene.Book, held bool) error {
	if g == nil || b == nil {
		return fmt.Errorf("remove book: nil argument")
	}
	idx := g.IndexOf(b.ID)
	if idx < 0 {
		return fmt.Errorf("book %d is not a member of stack %d", b.ID, g.ID)
	}
	if err := e.reg.Reparent(b.ID, 0); err != nil {
		return fmt.Errorf("detach book %d: %w", b.ID, err)
	}
	g.Members = append(g.Members[:idx], g.Members[idx+1:]...)
	b.Placement = domain.Placement{}
	e.Recompact(g)

	if g.Count() > 0 {
		return nil
	}
	if held && e.queue != nil {
		id := g.ID
		e.queue.After("stack-empty-check", 1, func() {
			if cur, ok := e.reg.Stack(id); ok && cur.Count() == 0 {
				e.Destroy(cur)
			}
		})
		return nil
	}
	e.Destroy(g)
	return nil
}

// Recompact rewrites member offsets and indices so they are contiguous from zero.
func (e *Engine) Recompact(g *scene.StackGroup) {
	for i, id := range g.Members {
		e.reg.SetLocal(id, e.layout(g, i))
		if b, ok := e.reg.Book(id); ok {
			b.Placement.Index = i
		}
	}
}

// Destroy removes a stack group. Remaining members are dropped to the scene root
// first so they survive.
func (e *Engine) Destroy(g *scene.StackGroup) {
	for _, id := range append([]scene.NodeID(nil), g.Members...) {
		if b, ok := e.reg.Book(id); ok {
			_ = e.reg.Reparent(id, 0)
			b.Placement = domain.Placement{}
			b.Physics = domain.Free()
		}
	}
	g.Members = nil
	e.reg.Destroy(g.ID)
}

// StackOnto puts incoming on top of target. A loose target first becomes the base
// of a new group in its current context, keeping its parent, pose and shelf slot.
// Books mounted on a display take no stack.
func (e *Engine) StackOnto(target, incoming *scene.Book) (domain.AddResult, error) {
	for _, b := range []*scene.Book{target, incoming} {
		if b != nil && b.Placement.Kind == domain.PlacementDisplay {
			return domain.RejectedInvalid, nil
		}
	}
	if !e.CanStack(target, incoming) {
		switch {
		case target == nil || incoming == nil || target.ID == incoming.ID:
			return domain.RejectedInvalid, nil
		case !domain.SameTitle(target.Title(), incoming.Title()):
			return domain.RejectedTitleMismatch, nil
		default:
			if g, ok := e.reg.StackOf(target); ok && g.IndexOf(incoming.ID) >= 0 {
				return domain.RejectedAlreadyMember, nil
			}
			return domain.RejectedFull, nil
		}
	}
	if g, ok := e.reg.StackOf(target); ok {
		return e.AddBook(g, incoming), nil
	}

	ctx := domain.StackOnTable
	parent := scene.NodeID(0)
	if n, ok := e.reg.Node(target.ID); ok {
		parent = n.Parent
	}
	region, slot, onShelf := e.reg.SlotOf(target.ID)
	if onShelf || target.Placement.Kind == domain.PlacementShelf {
		ctx = domain.StackOnShelf
	}
	g, err := e.NewGroup(ctx, parent, e.reg.World(target.ID), target.Prefab)
	if err != nil {
		return domain.RejectedInvalid, err
	}
	if res := e.AddBook(g, target); !res.OK() {
		e.reg.Destroy(g.ID)
		return res, nil
	}
	if onShelf {
		if err := e.reg.OccupySlot(region, slot, g.ID); err != nil {
			e.logger.Warn("move shelf slot to new stack", "stack", g.ID, "error", err)
		}
	}
	return e.AddBook(g, incoming), nil
}
