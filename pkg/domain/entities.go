// Package domain defines the value types shared by the shelfcore placement
// engine: geometry, book definitions, placement references and the tagged
// results returned by stacking operations.
package domain

import (
	"strings"
)

// NodeKind identifies what a node in the spatial registry represents.
type NodeKind string

// Supported node kinds.
const (
	// KindRoot is a plain grouping node with no entity attached.
	KindRoot NodeKind = "root"
	// KindBook identifies a single book instance.
	KindBook NodeKind = "book"
	// KindStack identifies the root node of a stack group.
	KindStack NodeKind = "stack"
	// KindShelf identifies the root of a freeform bookshelf.
	KindShelf NodeKind = "shelf"
	// KindShelfPart identifies structural intermediate nodes of a shelf (frames, bays).
	KindShelfPart NodeKind = "shelf_part"
	// KindRegion identifies a named placement volume of a shelf.
	KindRegion NodeKind = "region"
	// KindAnchor identifies a surface anchor such as a table top.
	KindAnchor  NodeKind = "anchor"
	KindDisplay NodeKind = "display"
	KindCrate   NodeKind = "crate"
	// KindTerminal identifies the checkout terminal.
	KindTerminal NodeKind = "terminal"
)

// NodeID addresses a node in the spatial registry arena. Zero means "no node".
type NodeID uint64

// Structural reports whether nodes of this kind form part of a shelf's
// hierarchy and are eligible for region name matching.
func (k NodeKind) Structural() bool {
	return k == KindShelf || k == KindShelfPart || k == KindRegion
}

// BookDefinition is the catalog's canonical description of a title. Copies of the
// same book share one definition and one ID.
type BookDefinition struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Title   string   `json:"title" yaml:"title" validate:"required"`
	Genre   string   `json:"genre,omitempty" yaml:"genre"`
	Summary string   `json:"summary,omitempty" yaml:"summary"`
	Price   float64  `json:"price" yaml:"price" validate:"gte=0"`
	Cost    float64  `json:"cost" yaml:"cost" validate:"gte=0"`
	Color   Color    `json:"color" yaml:"color"`
	Tags    []string `json:"tags,omitempty" yaml:"tags"`
	Prefab  string   `json:"prefab,omitempty" yaml:"prefab"`
}

// NormalizedTitle is the form used for stack title comparisons.
func (d BookDefinition) NormalizedTitle() string {
	return NormalizeTitle(d.Title)
}

// Clone returns a deep copy.
func (d BookDefinition) Clone() BookDefinition {
	out := d
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	return out
}

// NormalizeTitle trims and lower-cases a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// SameTitle reports whether two titles are equal after normalization.
func SameTitle(a, b string) bool {
	return NormalizeTitle(a) == NormalizeTitle(b)
}

// Prefab describes the spawnable shape of a book.
type Prefab struct {
	ID        string  `json:"id" yaml:"id" validate:"required"`
	Size      Vec3    `json:"size" yaml:"size"`
	Thickness float64 `json:"thickness" yaml:"thickness" validate:"gte=0"`
}

// Definable is implemented by entities whose presentation is driven by a book
// definition.
type Definable interface {
	ApplyDefinition(def BookDefinition)
}

// PlacementKind enumerates the mutually exclusive contexts a book can be placed in.
type PlacementKind string

// Supported placement kinds.
const (
	PlacementNone    PlacementKind = ""
	PlacementShelf   PlacementKind = "shelf"
	PlacementTable   PlacementKind = "table"
	PlacementStack   PlacementKind = "stack"
	PlacementDisplay PlacementKind = "display"
)

// Placement references the container holding a book by node ID. Container is the
// region node for shelves, the anchor node for tables, the stack root for stacks and
// the display node for displays. Index is the shelf slot or the position in the stack.
type Placement struct {
	Kind      PlacementKind `json:"kind,omitempty"`
	Container NodeID        `json:"container,omitempty"`
	Index     int           `json:"index,omitempty"`
}

// Placed reports whether the placement references a container.
func (p Placement) Placed() bool { return p.Kind != PlacementNone }

// StackContext determines the axis along which a stack grows.
type StackContext string

// Supported stack contexts.
const (
	StackOnTable StackContext = "table"
	StackOnShelf StackContext = "shelf"
)

// AddResult is the tagged outcome of adding a book to a stack.
type AddResult int

// Possible AddResult values.
const (
	Added AddResult = iota
	RejectedTitleMismatch
	RejectedFull
	RejectedAlreadyMember
	RejectedInvalid
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case RejectedTitleMismatch:
		return "rejected_title_mismatch"
	case RejectedFull:
		return "rejected_full"
	case RejectedAlreadyMember:
		return "rejected_already_member"
	case RejectedInvalid:
		return "rejected_invalid"
	default:
		return "unknown"
	}
}

// OK reports whether the book was added.
func (r AddResult) OK() bool { return r == Added }

// CollisionMode mirrors the collision detection setting of a placed body.
type CollisionMode string

// Supported collision modes.
const (
	CollisionContinuous CollisionMode = "continuous"
	CollisionDiscrete   CollisionMode = "discrete"
)

// Physics captures the simulation flags toggled by placement.
type Physics struct {
	Kinematic bool          `json:"kinematic"`
	Collision CollisionMode `json:"collision"`
}

// Frozen is the state of a placed book.
func Frozen() Physics { return Physics{Kinematic: true, Collision: CollisionDiscrete} }

// Free is the state of a loose or held book.
func Free() Physics { return Physics{Kinematic: false, Collision: CollisionContinuous} }

// PlayerPose is the persisted player position and view.
type PlayerPose struct {
	Position    Vec3    `json:"position"`
	Yaw         float64 `json:"yaw"`
	CameraPitch float64 `json:"cameraPitch"`
}
