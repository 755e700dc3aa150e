package core

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"shelfcore/internal/infra/persistence/postgres"
	"shelfcore/internal/infra/persistence/postgres/testutil"
	"shelfcore/internal/infra/persistence/sqlite"
)

const catalogYAML = `
default_prefab: plain
prefabs:
  - id: plain
    thickness: 0.03
books:
  - id: almanac
    title: Farmer's Almanac
    price: 9
    cost: 3
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestOpenCatalogDefaultsToDemoMemory(t *testing.T) {
	store, err := OpenCatalog(context.Background(), CatalogConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.DefinitionByID("atlas"); !ok {
		t.Fatalf("expected demo catalog")
	}
}

func TestOpenCatalogMemoryFromFile(t *testing.T) {
	store, err := OpenCatalog(context.Background(), CatalogConfig{Driver: "MEMORY", File: writeCatalog(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.DefinitionByID("almanac"); !ok {
		t.Fatalf("expected file catalog")
	}
	if _, ok := store.DefinitionByID("atlas"); ok {
		t.Fatalf("file catalog must replace the demo catalog")
	}
	if _, err := OpenCatalog(context.Background(), CatalogConfig{File: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestOpenCatalogSQLiteSeedsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	store, err := OpenCatalog(ctx, CatalogConfig{Driver: CatalogSQLite, SQLitePath: path, File: writeCatalog(t)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	_ = store.Close()

	// a populated store ignores the seed
	reopened, err := OpenCatalog(ctx, CatalogConfig{Driver: CatalogSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()
	if _, ok := reopened.DefinitionByID("almanac"); !ok {
		t.Fatalf("seeded catalog not persisted")
	}
	if _, ok := reopened.DefinitionByID("atlas"); ok {
		t.Fatalf("reopen must not reseed with the demo catalog")
	}
}

func TestOpenCatalogPostgresSeedsEmptyTable(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := OpenCatalog(context.Background(), CatalogConfig{Driver: CatalogPostgres})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if _, ok := store.DefinitionByID("atlas"); !ok {
		t.Fatalf("expected demo seed")
	}
	if len(conn.Tables["catalog"]) == 0 {
		t.Fatalf("seed must be flushed to the catalog table")
	}
}

func TestOpenCatalogUnknownDriver(t *testing.T) {
	if _, err := OpenCatalog(context.Background(), CatalogConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
