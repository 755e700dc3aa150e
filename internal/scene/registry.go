// Package scene implements the spatial registry: an arena of ID-addressed nodes
// forming the placement hierarchy, plus the entity tables (books, stacks,
// shelves, regions, anchors, displays, crates) attached to those nodes.
//
// Nodes reference their parent and children by NodeID only. Moving a node under a
// new parent is an ownership transfer between child lists that recomputes the
// local pose so the world pose is preserved.
package scene

import (
	"fmt"
	"sort"

	"shelfcore/pkg/domain"
)

// NodeID aliases domain.NodeID.
type NodeID = domain.NodeID

// Node is a single entry of the placement hierarchy.
type Node struct {
	ID       NodeID
	Kind     domain.NodeKind
	Name     string
	Parent   NodeID
	Children []NodeID
	Local    domain.Transform
	Visible  bool
}

type collisionPair struct{ a, b NodeID }

func pairOf(a, b NodeID) collisionPair {
	if a > b {
		a, b = b, a
	}
	return collisionPair{a: a, b: b}
}

type slotRef struct {
	region NodeID
	index  int
}

// Registry is the single authority for what is placed where. It is not safe for
// concurrent use; all mutation happens on the simulation step.
type Registry struct {
	seq      NodeID
	nodes    map[NodeID]*Node
	books    map[NodeID]*Book
	stacks   map[NodeID]*StackGroup
	shelves  map[NodeID]*Shelf
	regions  map[NodeID]*Region
	anchors  map[NodeID]*Anchor
	displays map[NodeID]*Display
	crates   map[NodeID]*Crate
	terminal *Terminal
	slotOf   map[NodeID]slotRef
	ignored  map[collisionPair]struct{}
	player   domain.PlayerPose
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.nodes = make(map[NodeID]*Node)
	r.books = make(map[NodeID]*Book)
	r.stacks = make(map[NodeID]*StackGroup)
	r.shelves = make(map[NodeID]*Shelf)
	r.regions = make(map[NodeID]*Region)
	r.anchors = make(map[NodeID]*Anchor)
	r.displays = make(map[NodeID]*Display)
	r.crates = make(map[NodeID]*Crate)
	r.terminal = nil
	r.slotOf = make(map[NodeID]slotRef)
	r.ignored = make(map[collisionPair]struct{})
}

// Clear tears down every node and entity. NodeIDs are never reused and the
// player pose survives.
func (r *Registry) Clear() {
	r.reset()
}

// Create adds a node under parent (zero for the scene root) with the given local pose.
func (r *Registry) Create(kind domain.NodeKind, name string, parent NodeID, local domain.Transform) (NodeID, error) {
	if parent != 0 {
		if _, ok := r.nodes[parent]; !ok {
			return 0, domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(parent)}
		}
	}
	if local.Rotation == (domain.Quat{}) {
		local.Rotation = domain.Identity
	}
	r.seq++
	id := r.seq
	r.nodes[id] = &Node{ID: id, Kind: kind, Name: name, Parent: parent, Local: local, Visible: true}
	if parent != 0 {
		p := r.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id, nil
}

// CreateWorld adds a node under parent positioned at the given world pose.
func (r *Registry) CreateWorld(kind domain.NodeKind, name string, parent NodeID, world domain.Transform) (NodeID, error) {
	if world.Rotation == (domain.Quat{}) {
		world.Rotation = domain.Identity
	}
	local := world
	if parent != 0 {
		if _, ok := r.nodes[parent]; !ok {
			return 0, domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(parent)}
		}
		local = r.World(parent).Relative(world)
	}
	return r.Create(kind, name, parent, local)
}

// Node returns the node with the given ID.
func (r *Registry) Node(id NodeID) (*Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Exists reports whether a node is live.
func (r *Registry) Exists(id NodeID) bool {
	_, ok := r.nodes[id]
	return ok
}

// Len returns the number of live nodes.
func (r *Registry) Len() int { return len(r.nodes) }

// World returns the world pose of a node. Unknown nodes resolve to the origin.
func (r *Registry) World(id NodeID) domain.Transform {
	n, ok := r.nodes[id]
	if !ok {
		return domain.At(domain.Vec3{})
	}
	if n.Parent == 0 {
		return n.Local
	}
	return r.World(n.Parent).Compose(n.Local)
}

// SetLocal overwrites a node's pose relative to its parent.
func (r *Registry) SetLocal(id NodeID, local domain.Transform) {
	if n, ok := r.nodes[id]; ok {
		n.Local = local
	}
}

// SetWorld moves a node to a world pose without changing its parent.
func (r *Registry) SetWorld(id NodeID, world domain.Transform) {
	n, ok := r.nodes[id]
	if !ok {
		return
	}
	if n.Parent == 0 {
		n.Local = world
		return
	}
	n.Local = r.World(n.Parent).Relative(world)
}

// Reparent moves id under parent (zero for the scene root) preserving its world pose.
func (r *Registry) Reparent(id, parent NodeID) error {
	n, ok := r.nodes[id]
	if !ok {
		return domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(id)}
	}
	if parent == n.Parent {
		return nil
	}
	if parent != 0 {
		if _, ok := r.nodes[parent]; !ok {
			return domain.ErrNotFound{Entity: "node", ID: fmt.Sprint(parent)}
		}
		if parent == id || r.IsAncestor(id, parent) {
			return fmt.Errorf("reparent %d under %d: cycle", id, parent)
		}
	}
	world := r.World(id)
	r.detach(n)
	n.Parent = parent
	if parent == 0 {
		n.Local = world
		return nil
	}
	p := r.nodes[parent]
	p.Children = append(p.Children, id)
	n.Local = r.World(parent).Relative(world)
	return nil
}

func (r *Registry) detach(n *Node) {
	if n.Parent == 0 {
		return
	}
	p, ok := r.nodes[n.Parent]
	if !ok {
		return
	}
	for i, c := range p.Children {
		if c == n.ID {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
}

// Destroy removes a node, its whole subtree and every entity record attached to it.
// It returns the IDs that were removed.
func (r *Registry) Destroy(id NodeID) []NodeID {
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	removed := append([]NodeID{id}, r.Descendants(id)...)
	r.detach(n)
	for _, rid := range removed {
		r.forget(rid)
	}
	return removed
}

func (r *Registry) forget(id NodeID) {
	r.ReleaseSlot(id)
	if b, ok := r.books[id]; ok {
		if b.Placement.Kind == domain.PlacementDisplay {
			if d, ok := r.displays[b.Placement.Container]; ok && d.Book == id {
				d.Book = 0
			}
		}
		if b.Placement.Kind == domain.PlacementStack {
			if g, ok := r.stacks[b.Placement.Container]; ok {
				g.remove(id)
			}
		}
	}
	if reg, ok := r.regions[id]; ok {
		for _, occ := range reg.Slots {
			if occ != 0 {
				delete(r.slotOf, occ)
			}
		}
	}
	if d, ok := r.displays[id]; ok && d.Book != 0 {
		if b, ok := r.books[d.Book]; ok {
			b.Placement = domain.Placement{}
		}
	}
	delete(r.books, id)
	delete(r.stacks, id)
	delete(r.shelves, id)
	delete(r.regions, id)
	delete(r.anchors, id)
	delete(r.displays, id)
	delete(r.crates, id)
	if r.terminal != nil && r.terminal.ID == id {
		r.terminal = nil
	}
	for p := range r.ignored {
		if p.a == id || p.b == id {
			delete(r.ignored, p)
		}
	}
	delete(r.nodes, id)
}

// SetVisible toggles renderer visibility of a node.
func (r *Registry) SetVisible(id NodeID, visible bool) {
	if n, ok := r.nodes[id]; ok {
		n.Visible = visible
	}
}

// IgnoreCollision marks a pair of nodes as not colliding with each other.
func (r *Registry) IgnoreCollision(a, b NodeID) {
	r.ignored[pairOf(a, b)] = struct{}{}
}

// RestoreCollision removes an ignored pair.
func (r *Registry) RestoreCollision(a, b NodeID) {
	delete(r.ignored, pairOf(a, b))
}

// CollisionIgnored reports whether a pair is ignored.
func (r *Registry) CollisionIgnored(a, b NodeID) bool {
	_, ok := r.ignored[pairOf(a, b)]
	return ok
}

// Player returns the stored player pose.
func (r *Registry) Player() domain.PlayerPose { return r.player }

// SetPlayer stores the player pose.
func (r *Registry) SetPlayer(p domain.PlayerPose) { r.player = p }

func sortedIDs[T any](m map[NodeID]T) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
