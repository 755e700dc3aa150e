// Package catalog holds book definitions and prefabs. Spawn and load paths only
// read from it.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"shelfcore/pkg/domain"
)

// Catalog resolves the data a book instance is built from.
type Catalog interface {
	PrefabByID(id string) (domain.Prefab, bool)
	DefinitionByID(id string) (domain.BookDefinition, bool)
}

// Snapshot is the serialisable form of a catalog.
type Snapshot struct {
	Definitions   []domain.BookDefinition `json:"definitions" yaml:"books" validate:"dive"`
	Prefabs       []domain.Prefab         `json:"prefabs" yaml:"prefabs" validate:"dive"`
	DefaultPrefab string                  `json:"defaultPrefab,omitempty" yaml:"default_prefab"`
}

var validate = validator.New()

// Validate checks every definition and prefab.
func (s Snapshot) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(s.Definitions))
	for _, d := range s.Definitions {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("validate catalog: duplicate book id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

// Memory is an in-memory catalog safe for concurrent readers.
type Memory struct {
	mu            sync.RWMutex
	definitions   map[string]domain.BookDefinition
	prefabs       map[string]domain.Prefab
	defaultPrefab string
}

var _ Catalog = (*Memory)(nil)

// NewMemory constructs an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		definitions: make(map[string]domain.BookDefinition),
		prefabs:     make(map[string]domain.Prefab),
	}
}

// PutDefinition stores or replaces a definition.
func (m *Memory) PutDefinition(def domain.BookDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("put definition: empty id")
	}
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("put definition %s: %w", def.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID] = def.Clone()
	return nil
}

// PutPrefab stores or replaces a prefab.
func (m *Memory) PutPrefab(p domain.Prefab) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("put prefab: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefabs[p.ID] = p
	return nil
}

// SetDefaultPrefab names the prefab used for definitions that do not name one.
func (m *Memory) SetDefaultPrefab(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPrefab = id
}

// DefinitionByID implements Catalog.
func (m *Memory) DefinitionByID(id string) (domain.BookDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.definitions[id]
	if !ok {
		return domain.BookDefinition{}, false
	}
	return d.Clone(), true
}

// PrefabByID returns the prefab a book ID is instantiated from. The lookup
// accepts a book ID (using the definition's prefab, else the default) or a prefab
// ID directly.
func (m *Memory) PrefabByID(id string) (domain.Prefab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.definitions[id]; ok && d.Prefab != "" {
		if p, ok := m.prefabs[d.Prefab]; ok {
			return p, true
		}
	}
	if p, ok := m.prefabs[id]; ok {
		return p, true
	}
	if m.defaultPrefab != "" {
		p, ok := m.prefabs[m.defaultPrefab]
		return p, ok
	}
	return domain.Prefab{}, false
}

// Definitions lists definitions ordered by ID.
func (m *Memory) Definitions() []domain.BookDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.BookDefinition, 0, len(m.definitions))
	for _, d := range m.definitions {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of definitions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.definitions)
}

// ExportState copies the catalog into a snapshot.
func (m *Memory) ExportState() Snapshot {
	defs := m.Definitions()
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefabs := make([]domain.Prefab, 0, len(m.prefabs))
	for _, p := range m.prefabs {
		prefabs = append(prefabs, p)
	}
	sort.Slice(prefabs, func(i, j int) bool { return prefabs[i].ID < prefabs[j].ID })
	return Snapshot{Definitions: defs, Prefabs: prefabs, DefaultPrefab: m.defaultPrefab}
}

// ImportState replaces the catalog contents with a validated snapshot.
func (m *Memory) ImportState(s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions = make(map[string]domain.BookDefinition, len(s.Definitions))
	for _, d := range s.Definitions {
		m.definitions[d.ID] = d.Clone()
	}
	m.prefabs = make(map[string]domain.Prefab, len(s.Prefabs))
	for _, p := range s.Prefabs {
		m.prefabs[p.ID] = p
	}
	m.defaultPrefab = s.DefaultPrefab
	return nil
}

// Store is a catalog with a durable backing. Flush writes the current contents.
type Store interface {
	Catalog
	PutDefinition(def domain.BookDefinition) error
	PutPrefab(p domain.Prefab) error
	Definitions() []domain.BookDefinition
	ExportState() Snapshot
	ImportState(s Snapshot) error
	Flush(ctx context.Context) error
	Close() error
}

var _ Store = (*Memory)(nil)

// Flush is a no-op for the in-memory catalog.
func (m *Memory) Flush(context.Context) error { return nil }

// Close is a no-op for the in-memory catalog.
func (m *Memory) Close() error { return nil }
