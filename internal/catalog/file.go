package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"shelfcore/pkg/domain"
)

// ParseYAML decodes a catalog document. Unknown fields are rejected.
func ParseYAML(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// LoadFile reads a YAML catalog file into a new memory catalog.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	s, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m := NewMemory()
	if err := m.ImportState(s); err != nil {
		return nil, err
	}
	return m, nil
}

// Demo returns the small catalog used when no catalog is configured.
func Demo() *Memory {
	m := NewMemory()
	_ = m.ImportState(Snapshot{
		DefaultPrefab: "book-standard",
		Prefabs: []domain.Prefab{
			{ID: "book-standard", Thickness: 0.04},
			{ID: "book-large", Thickness: 0.06},
		},
		Definitions: demoDefinitions(),
	})
	return m
}

func demoDefinitions() []domain.BookDefinition {
	book := func(id, title, genre string, price, cost float64, c domain.Color, prefab string) domain.BookDefinition {
		return domain.BookDefinition{ID: id, Title: title, Genre: genre, Price: price, Cost: cost, Color: c, Prefab: prefab}
	}
	return []domain.BookDefinition{
		book("atlas", "Atlas", "Reference", 24, 12, domain.Color{R: 0.2, G: 0.4, B: 0.8, A: 1}, "book-large"),
		book("bestiary", "Bestiary", "Fantasy", 18, 8, domain.Color{R: 0.5, G: 0.1, B: 0.1, A: 1}, ""),
		book("cookbook", "Kitchen Basics", "Cooking", 15, 6, domain.Color{R: 0.9, G: 0.7, B: 0.2, A: 1}, ""),
		book("mystery", "The Quiet Harbour", "Mystery", 12, 5, domain.Color{R: 0.1, G: 0.3, B: 0.3, A: 1}, ""),
	}
}
