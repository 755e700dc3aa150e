package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"shelfcore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.PutPrefab(domain.Prefab{ID: "std", Thickness: 0.05}); err != nil {
		t.Fatalf("put prefab: %v", err)
	}
	store.SetDefaultPrefab("std")
	if err := store.PutDefinition(domain.BookDefinition{ID: "atlas", Title: "Atlas", Price: 20, Tags: []string{"maps"}}); err != nil {
		t.Fatalf("put definition: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	def, ok := reloaded.DefinitionByID("atlas")
	if !ok || def.Title != "Atlas" || len(def.Tags) != 1 {
		t.Fatalf("definition not restored: %+v", def)
	}
	p, ok := reloaded.PrefabByID("atlas")
	if !ok || p.ID != "std" {
		t.Fatalf("expected default prefab after reload, got %+v", p)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreRejectsCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO catalog(bucket,payload) VALUES('definitions', ?)`, []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
