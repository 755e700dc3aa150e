package core

import (
	"context"
	"fmt"
	"strings"

	"shelfcore/internal/catalog"
	"shelfcore/internal/infra/persistence/postgres"
	"shelfcore/internal/infra/persistence/sqlite"
)

// CatalogDriver identifies a catalog backend.
type CatalogDriver string

// Supported catalog drivers.
const (
	CatalogMemory   CatalogDriver = "memory"   // seeded in-process, nothing persisted
	CatalogSQLite   CatalogDriver = "sqlite"   // embedded sqlite file
	CatalogPostgres CatalogDriver = "postgres" // PostgreSQL server
)

// CatalogConfig selects and seeds the catalog backend. File is a YAML catalog
// used to seed an empty store; without it the demo catalog is used.
type CatalogConfig struct {
	Driver      CatalogDriver `yaml:"driver" validate:"omitempty,oneof=memory sqlite postgres"`
	File        string        `yaml:"file"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// OpenCatalog opens the configured catalog store. Persistent stores that come up
// empty are seeded and flushed once. An empty driver means memory.
func OpenCatalog(ctx context.Context, cfg CatalogConfig) (catalog.Store, error) {
	driver := CatalogDriver(strings.ToLower(string(cfg.Driver)))
	if driver == "" {
		driver = CatalogMemory
	}
	var (
		store catalog.Store
		err   error
	)
	switch driver {
	case CatalogMemory:
		mem, err := seedCatalog(cfg.File)
		if err != nil {
			return nil, err
		}
		return mem, nil
	case CatalogSQLite:
		store, err = sqlite.NewStore(cfg.SQLitePath)
	case CatalogPostgres:
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if len(store.Definitions()) > 0 {
		return store, nil
	}
	seed, err := seedCatalog(cfg.File)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.ImportState(seed.ExportState()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if err := store.Flush(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return store, nil
}

func seedCatalog(file string) (*catalog.Memory, error) {
	if file == "" {
		return catalog.Demo(), nil
	}
	return catalog.LoadFile(file)
}
