// Package region maps persisted shelf references back to live region nodes after a
// shelf hierarchy has been rebuilt, tolerating renamed and duplicated instances.
package region

import (
	"math"
	"strings"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// CloneSuffix is appended to the names of instantiated copies.
const CloneSuffix = "(Clone)"

// Strategy names the step that produced a resolution.
type Strategy int

// Resolution strategies in priority order.
const (
	StrategyPath Strategy = iota + 1
	StrategyExactName
	StrategyLooseName
	StrategyRegisteredRegion
	StrategyShelfRoot
)

func (s Strategy) String() string {
	switch s {
	case StrategyPath:
		return "path"
	case StrategyExactName:
		return "exact_name"
	case StrategyLooseName:
		return "loose_name"
	case StrategyRegisteredRegion:
		return "registered_region"
	case StrategyShelfRoot:
		return "shelf_root"
	default:
		return "unknown"
	}
}

// Resolution is the node a reference resolved to.
type Resolution struct {
	Shelf    *scene.Shelf
	Node     scene.NodeID
	Strategy Strategy
}

// Region returns the region entity when the resolution landed on one.
func (r Resolution) Region(reg *scene.Registry) (*scene.Region, bool) {
	return reg.Region(r.Node)
}

// Resolver looks up live shelves and regions in a registry.
type Resolver struct {
	reg    *scene.Registry
	logger domain.Logger
}

// NewResolver constructs a resolver over reg.
func NewResolver(reg *scene.Registry, logger domain.Logger) *Resolver {
	return &Resolver{reg: reg, logger: domain.LoggerOrNoop(logger)}
}

// StripCloneSuffix removes trailing "(Clone)" markers (any case) and surrounding
// whitespace.
func StripCloneSuffix(name string) string {
	s := strings.TrimSpace(name)
	for strings.HasSuffix(strings.ToLower(s), strings.ToLower(CloneSuffix)) {
		s = strings.TrimSpace(s[:len(s)-len(CloneSuffix)])
	}
	return s
}

func normalize(name string) string {
	return strings.ToLower(StripCloneSuffix(name))
}

// FindShelf returns the live shelf with objectID. When several instances share the
// ID the one closest to near wins.
func (r *Resolver) FindShelf(objectID string, near domain.Vec3) (*scene.Shelf, bool) {
	candidates := r.reg.ShelvesByObjectID(objectID)
	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		return candidates[0], true
	}
	r.logger.Warn("duplicate shelf object id, picking nearest instance", "object_id", objectID, "instances", len(candidates))
	best, bestDist := candidates[0], math.Inf(1)
	for _, s := range candidates {
		if d := domain.Distance(r.reg.World(s.ID).Position, near); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

// Resolve finds the region of shelf objectID named by hint. It reports false only
// when no shelf carries objectID.
func (r *Resolver) Resolve(objectID, hint string, near domain.Vec3) (Resolution, bool) {
	shelf, ok := r.FindShelf(objectID, near)
	if !ok {
		return Resolution{}, false
	}
	return r.ResolveRegion(shelf, hint), true
}

// ResolveRegion maps hint to a node of shelf. It never fails: the shelf root is the
// last resort.
func (r *Resolver) ResolveRegion(shelf *scene.Shelf, hint string) Resolution {
	res := func(id scene.NodeID, s Strategy) Resolution {
		return Resolution{Shelf: shelf, Node: id, Strategy: s}
	}
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return res(shelf.ID, StrategyShelfRoot)
	}

	if strings.Contains(hint, scene.PathSeparator) {
		if id, ok := r.reg.FindPath(shelf.ID, hint); ok {
			return res(id, StrategyPath)
		}
		stripped := func(name, seg string) bool { return StripCloneSuffix(name) == StripCloneSuffix(seg) }
		if id, ok := r.reg.FindPathFunc(shelf.ID, hint, stripped); ok {
			return res(id, StrategyPath)
		}
	}

	leaf := hint
	if i := strings.LastIndex(hint, scene.PathSeparator); i >= 0 {
		leaf = hint[i+1:]
	}
	want := normalize(leaf)
	if want == "" {
		return res(shelf.ID, StrategyShelfRoot)
	}

	if id, ok := r.reg.FindDescendant(shelf.ID, func(n *scene.Node) bool {
		return n.Kind.Structural() && (strings.EqualFold(n.Name, leaf) || normalize(n.Name) == want)
	}); ok {
		return res(id, StrategyExactName)
	}

	if id, ok := r.reg.FindDescendant(shelf.ID, func(n *scene.Node) bool {
		return n.Kind.Structural() && looseMatch(normalize(n.Name), want)
	}); ok {
		return res(id, StrategyLooseName)
	}

	if id, ok := r.registeredRegion(shelf, want); ok {
		return res(id, StrategyRegisteredRegion)
	}

	r.logger.Warn("shelf region not found, using shelf root", "object_id", shelf.ObjectID, "hint", hint)
	return res(shelf.ID, StrategyShelfRoot)
}

func looseMatch(name, want string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(want, name) || strings.Contains(name, want) ||
		strings.HasPrefix(name, want) || strings.HasPrefix(want, name)
}

// registeredRegion scans the shelf's region table by configured name. An exact
// match returns immediately; otherwise the loosely matching region closest to the
// shelf origin wins.
func (r *Resolver) registeredRegion(shelf *scene.Shelf, want string) (scene.NodeID, bool) {
	origin := r.reg.World(shelf.ID).Position
	best, bestDist := scene.NodeID(0), math.Inf(1)
	for _, g := range r.reg.Regions(shelf) {
		name := normalize(g.Name)
		if name == want {
			return g.ID, true
		}
		if !looseMatch(name, want) {
			continue
		}
		if d := domain.Distance(r.reg.World(g.ID).Position, origin); d < bestDist {
			best, bestDist = g.ID, d
		}
	}
	return best, best != 0
}
