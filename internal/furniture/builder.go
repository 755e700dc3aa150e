// Package furniture spawns the structural containers of the store (shelves,
// tables, displays, crates, the terminal) and runs cancellable move sessions.
package furniture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"shelfcore/internal/scene"
	"shelfcore/pkg/domain"
)

// RegionSpec describes one region of a shelf template. Parent is a slash separated
// chain of structural parts created under the shelf root.
type RegionSpec struct {
	Name    string      `yaml:"name" validate:"required"`
	Parent  string      `yaml:"parent"`
	Center  domain.Vec3 `yaml:"center"`
	Size    domain.Vec3 `yaml:"size"`
	Spacing float64     `yaml:"spacing" validate:"gte=0"`
}

// ShelfTemplate is the configuration a shelf's regions are generated from.
type ShelfTemplate struct {
	Name      string       `yaml:"name" validate:"required"`
	Footprint domain.Vec3  `yaml:"footprint"`
	Regions   []RegionSpec `yaml:"regions" validate:"required,min=1,dive"`
}

// DefaultTemplates returns the stock shelf layouts.
func DefaultTemplates() []ShelfTemplate {
	rows := func(parent string, names ...string) []RegionSpec {
		out := make([]RegionSpec, 0, len(names))
		for i, n := range names {
			out = append(out, RegionSpec{
				Name:    n,
				Parent:  parent,
				Center:  domain.V3(0, 1.7-0.55*float64(i), 0),
				Size:    domain.V3(1.2, 0.4, 0.3),
				Spacing: 0.1,
			})
		}
		return out
	}
	return []ShelfTemplate{
		{Name: "Bookcase", Footprint: domain.V3(1.3, 2, 0.4), Regions: rows("Frame", "Top", "Middle", "Bottom")},
		{Name: "LowShelf", Footprint: domain.V3(1.3, 1, 0.4), Regions: rows("", "Upper", "Lower")},
	}
}

// NewObjectID returns a fresh persistent identifier.
func NewObjectID() string { return uuid.NewString() }

// Builder instantiates furniture into a registry.
type Builder struct {
	reg       *scene.Registry
	templates map[string]ShelfTemplate
	logger    domain.Logger
}

// NewBuilder indexes templates by name (case-insensitive). Later duplicates win.
func NewBuilder(reg *scene.Registry, templates []ShelfTemplate, logger domain.Logger) *Builder {
	b := &Builder{reg: reg, templates: make(map[string]ShelfTemplate, len(templates)), logger: domain.LoggerOrNoop(logger)}
	for _, t := range templates {
		b.templates[strings.ToLower(t.Name)] = t
	}
	return b
}

// Template returns the template with the given name.
func (b *Builder) Template(name string) (ShelfTemplate, bool) {
	t, ok := b.templates[strings.ToLower(name)]
	return t, ok
}

// TemplateNames lists configured templates in name order.
func (b *Builder) TemplateNames() []string {
	out := make([]string, 0, len(b.templates))
	for _, t := range b.templates {
		out = append(out, t.Name)
	}
	sort.Strings(out)
	return out
}

// SpawnShelf builds a shelf and its region hierarchy from a template. The same
// template always yields the same names and paths. An empty objectID gets a new one.
func (b *Builder) SpawnShelf(template, objectID string, world domain.Transform) (*scene.Shelf, error) {
	t, ok := b.Template(template)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.KindShelf, ID: "template " + template}
	}
	if objectID == "" {
		objectID = NewObjectID()
	}
	shelf, err := b.reg.NewShelf(objectID, t.Name, world)
	if err != nil {
		return nil, fmt.Errorf("spawn shelf %s: %w", t.Name, err)
	}
	for _, spec := range t.Regions {
		parent, err := b.ensureParts(shelf.ID, spec.Parent)
		if err != nil {
			b.reg.Destroy(shelf.ID)
			return nil, fmt.Errorf("spawn shelf %s: %w", t.Name, err)
		}
		// parts sit at the shelf origin, so the center is already parent-local
		if _, err := b.reg.NewRegion(shelf, parent, spec.Name, domain.At(spec.Center), spec.Size, spec.Spacing); err != nil {
			b.reg.Destroy(shelf.ID)
			return nil, fmt.Errorf("spawn shelf %s region %s: %w", t.Name, spec.Name, err)
		}
	}
	b.logger.Debug("shelf spawned", "object_id", objectID, "template", t.Name, "regions", len(shelf.Regions))
	return shelf, nil
}

// ensureParts creates (or reuses) the chain of structural parts named by path.
func (b *Builder) ensureParts(root scene.NodeID, path string) (scene.NodeID, error) {
	cur := root
	for _, seg := range strings.Split(path, scene.PathSeparator) {
		if seg = strings.TrimSpace(seg); seg == "" {
			continue
		}
		if next, ok := b.reg.FindPath(cur, seg); ok {
			cur = next
			continue
		}
		id, err := b.reg.Create(domain.KindShelfPart, seg, cur, domain.At(domain.Vec3{}))
		if err != nil {
			return 0, err
		}
		cur = id
	}
	return cur, nil
}

// SpawnTable creates a surface anchor. An empty objectID gets a new one.
func (b *Builder) SpawnTable(objectID string, world domain.Transform, size domain.Vec3) (*scene.Anchor, error) {
	if objectID == "" {
		objectID = NewObjectID()
	}
	return b.reg.NewAnchor(objectID, "Table", world, size)
}

// SpawnDisplay creates a display, parented to the anchor with anchorObjectID when given.
func (b *Builder) SpawnDisplay(objectID, anchorObjectID string, world domain.Transform) (*scene.Display, error) {
	if objectID == "" {
		objectID = NewObjectID()
	}
	parent := scene.NodeID(0)
	if anchorObjectID != "" {
		a, ok := b.reg.AnchorByObjectID(anchorObjectID)
		if !ok {
			b.logger.Warn("display anchor missing, placing display in world space", "display", objectID, "anchor", anchorObjectID)
		} else {
			parent = a.ID
		}
	}
	return b.reg.NewDisplay(objectID, parent, world)
}

// SpawnCrate creates a crate holding the given book IDs.
func (b *Builder) SpawnCrate(objectID string, world domain.Transform, contents []string, opened bool) (*scene.Crate, error) {
	if objectID == "" {
		objectID = NewObjectID()
	}
	return b.reg.NewCrate(objectID, world, contents, opened)
}

// SpawnTerminal places the checkout terminal.
func (b *Builder) SpawnTerminal(objectID string, world domain.Transform) (*scene.Terminal, error) {
	if objectID == "" {
		objectID = NewObjectID()
	}
	return b.reg.SetTerminal(objectID, world)
}
