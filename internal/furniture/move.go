package furniture

import (
	"fmt"
	"math"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// Validator decides whether a node may stay at its current pose.
type Validator interface {
	Validate(reg *scene.Registry, id scene.NodeID) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(reg *scene.Registry, id scene.NodeID) error

// Validate calls f.
func (f ValidatorFunc) Validate(reg *scene.Registry, id scene.NodeID) error { return f(reg, id) }

type visibility struct {
	id      scene.NodeID
	visible bool
}

// MoveSession is an in-progress move of a piece of furniture or a stack. Until it
// is committed the original pose, renderer visibility and collision state can be
// restored with Cancel.
type MoveSession struct {
	reg      *scene.Registry
	logger   domain.Logger
	target   scene.NodeID
	original domain.Transform
	hidden   []visibility
	ignored  [][2]scene.NodeID
	done     bool
}

// BeginMove starts moving id. Renderers of the subtree are hidden and collisions
// between the node and its descendants are ignored for the duration.
func (b *Builder) BeginMove(id scene.NodeID) (*MoveSession, error) {
	n, ok := b.reg.Node(id)
	if !ok {
		return nil, domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(id)}
	}
	s := &MoveSession{reg: b.reg, logger: b.logger, target: id, original: b.reg.World(id)}
	for _, nid := range append([]scene.NodeID{id}, b.reg.Descendants(id)...) {
		if node, ok := b.reg.Node(nid); ok {
			s.hidden = append(s.hidden, visibility{id: nid, visible: node.Visible})
			b.reg.SetVisible(nid, false)
		}
		if nid != id && !b.reg.CollisionIgnored(id, nid) {
			b.reg.IgnoreCollision(id, nid)
			s.ignored = append(s.ignored, [2]scene.NodeID{id, nid})
		}
	}
	b.logger.Debug("move started", "node", id, "kind", n.Kind)
	return s, nil
}

// Target returns the node being moved.
func (s *MoveSession) Target() scene.NodeID { return s.target }

// Original returns the world pose the move started from.
func (s *MoveSession) Original() domain.Transform { return s.original }

// Active reports whether the session has neither been committed nor cancelled.
func (s *MoveSession) Active() bool { return !s.done }

// MoveTo sets the target's world pose.
func (s *MoveSession) MoveTo(world domain.Transform) error {
	if s.done {
		return fmt.Errorf("move %d: session closed", s.target)
	}
	if !s.reg.Exists(s.target) {
		return domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(s.target)}
	}
	if world.Rotation == (domain.Quat{}) {
		world.Rotation = domain.Identity
	}
	s.reg.SetWorld(s.target, world)
	return nil
}

// Nudge translates the target by delta in world space.
func (s *MoveSession) Nudge(delta domain.Vec3) error {
	w := s.reg.World(s.target)
	w.Position = w.Position.Add(delta)
	return s.MoveTo(w)
}

// Commit validates the new pose. A rejected pose runs the cancel path and returns
// an error wrapping domain.ErrInvalidMove.
func (s *MoveSession) Commit(v Validator) error {
	if s.done {
		return fmt.Errorf("move %d: session closed", s.target)
	}
	if !s.reg.Exists(s.target) {
		s.Cancel()
		return fmt.Errorf("move %d: %w: node destroyed", s.target, domain.ErrInvalidMove)
	}
	if v != nil {
		if err := v.Validate(s.reg, s.target); err != nil {
			s.Cancel()
			return fmt.Errorf("move %d: %w", s.target, err)
		}
	}
	s.restore()
	s.done = true
	s.logger.Debug("move committed", "node", s.target)
	return nil
}

// Cancel puts the target back where it started and restores renderers and
// collision state. Calling it more than once, or after Commit, does nothing.
func (s *MoveSession) Cancel() {
	if s.done {
		return
	}
	s.done = true
	if s.reg.Exists(s.target) {
		s.reg.SetWorld(s.target, s.original)
	}
	s.restore()
	s.logger.Debug("move cancelled", "node", s.target)
}

func (s *MoveSession) restore() {
	for _, h := range s.hidden {
		s.reg.SetVisible(h.id, h.visible)
	}
	for _, p := range s.ignored {
		s.reg.RestoreCollision(p[0], p[1])
	}
	s.hidden, s.ignored = nil, nil
}

// FootprintValidator rejects furniture whose floor footprint overlaps another
// piece of furniture. Footprints are axis-aligned boxes on the XZ plane.
type FootprintValidator struct {
	Builder *Builder
	// Default is used for furniture without a configured footprint.
	Default domain.Vec3
}

// Validate implements Validator.
func (v FootprintValidator) Validate(reg *scene.Registry, id scene.NodeID) error {
	self, ok := v.footprint(reg, id)
	if !ok {
		return nil
	}
	for _, other := range furnitureIDs(reg) {
		if other == id || reg.IsAncestor(id, other) || reg.IsAncestor(other, id) || reg.CollisionIgnored(id, other) {
			continue
		}
		box, ok := v.footprint(reg, other)
		if ok && self.overlaps(box) {
			return fmt.Errorf("%w: overlaps node %d", domain.ErrInvalidMove, other)
		}
	}
	return nil
}

type rect struct{ minX, maxX, minZ, maxZ float64 }

func (a rect) overlaps(b rect) bool {
	const tol = 1e-6
	return a.minX < b.maxX-tol && b.minX < a.maxX-tol && a.minZ < b.maxZ-tol && b.minZ < a.maxZ-tol
}

func (v FootprintValidator) footprint(reg *scene.Registry, id scene.NodeID) (rect, bool) {
	size := v.Default
	switch {
	case hasShelf(reg, id):
		s, _ := reg.Shelf(id)
		if v.Builder != nil {
			if t, ok := v.Builder.Template(s.Template); ok && t.Footprint != (domain.Vec3{}) {
				size = t.Footprint
			}
		}
	case hasAnchor(reg, id):
		a, _ := reg.Anchor(id)
		if a.Size != (domain.Vec3{}) {
			size = a.Size
		}
	}
	if size.X <= 0 || size.Z <= 0 {
		return rect{}, false
	}
	w := reg.World(id)
	ex := w.Rotation.Rotate(domain.V3(size.X/2, 0, 0))
	ez := w.Rotation.Rotate(domain.V3(0, 0, size.Z/2))
	hx := math.Abs(ex.X) + math.Abs(ez.X)
	hz := math.Abs(ex.Z) + math.Abs(ez.Z)
	return rect{minX: w.Position.X - hx, maxX: w.Position.X + hx, minZ: w.Position.Z - hz, maxZ: w.Position.Z + hz}, true
}

func hasShelf(reg *scene.Registry, id scene.NodeID) bool {
	_, ok := reg.Shelf(id)
	return ok
}

func hasAnchor(reg *scene.Registry, id scene.NodeID) bool {
	_, ok := reg.Anchor(id)
	return ok
}

// furnitureIDs lists free-standing furniture: shelves, anchors, crates, the
// terminal and displays that are not mounted on an anchor.
func furnitureIDs(reg *scene.Registry) []scene.NodeID {
	var ids []scene.NodeID
	for _, s := range reg.Shelves() {
		ids = append(ids, s.ID)
	}
	for _, a := range reg.Anchors() {
		ids = append(ids, a.ID)
	}
	for _, c := range reg.Crates() {
		ids = append(ids, c.ID)
	}
	for _, d := range reg.Displays() {
		if n, ok := reg.Node(d.ID); ok && n.Parent == 0 {
			ids = append(ids, d.ID)
		}
	}
	if t, ok := reg.Terminal(); ok {
		ids = append(ids, t.ID)
	}
	return ids
}
