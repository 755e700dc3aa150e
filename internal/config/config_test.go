package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfcore/internal/blob"
	"shelfcore/internal/core"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelfcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stack.MaxHeight != 4 || cfg.Save.ReconnectDelayTicks != 2 || cfg.HTTP.Addr == "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Shelves) == 0 {
		t.Fatalf("expected stock shelf templates")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
http:
  addr: "127.0.0.1:9000"
stack:
  max_height: 6
blob:
  driver: memory
economy:
  starting_balance: 1200
shelves:
  - name: Tower
    footprint: {x: 1, y: 3, z: 1}
    regions:
      - name: Crown
        center: {x: 0, y: 2.5, z: 0}
        size: {x: 0.8, y: 0.4, z: 0.3}
        spacing: 0.1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" || cfg.Stack.MaxHeight != 6 || cfg.Blob.Driver != blob.DriverMemory {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Stack.TableThickness == 0 {
		t.Fatalf("unset thickness should keep its default")
	}
	session := cfg.Session()
	if session.StartingBalance != 1200 || len(session.Templates) != 1 || session.Templates[0].Name != "Tower" {
		t.Fatalf("unexpected session config %+v", session)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"SHELFCORE_BLOB_DRIVER":        "S3",
		"SHELFCORE_BLOB_S3_BUCKET":     "saves",
		"SHELFCORE_BLOB_S3_PATH_STYLE": "true",
		"SHELFCORE_CATALOG_DRIVER":     "sqlite",
		"SHELFCORE_SQLITE_PATH":        "/tmp/catalog.db",
		"SHELFCORE_STARTING_DAY":       "7",
		"SHELFCORE_SAVE_KEY":           "  slot-2.json ",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "saves" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("blob env not applied: %+v", cfg.Blob)
	}
	if cfg.Catalog.Driver != core.CatalogSQLite || cfg.Catalog.SQLitePath != "/tmp/catalog.db" {
		t.Fatalf("catalog env not applied: %+v", cfg.Catalog)
	}
	if cfg.Economy.StartingDay != 7 || cfg.Save.Key != "slot-2.json" {
		t.Fatalf("scalar env not applied: %+v", cfg)
	}
}

func TestApplyEnvRejectsMalformedNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"SHELFCORE_STACK_MAX_HEIGHT": "tall",
		"SHELFCORE_STARTING_BALANCE": "lots",
	}))
	if err == nil || !strings.Contains(err.Error(), "SHELFCORE_STACK_MAX_HEIGHT") || !strings.Contains(err.Error(), "SHELFCORE_STARTING_BALANCE") {
		t.Fatalf("expected both variables reported, got %v", err)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"negative balance": func(c *Config) { c.Economy.StartingBalance = -1 },
		"unknown blob":     func(c *Config) { c.Blob.Driver = "tape" },
		"unknown catalog":  func(c *Config) { c.Catalog.Driver = "mongo" },
		"duplicate shelf":  func(c *Config) { c.Shelves = append(c.Shelves, c.Shelves[0]) },
		"regionless shelf": func(c *Config) { c.Shelves[0].Regions = nil },
		"long reconnect":   func(c *Config) { c.Save.ReconnectDelayTicks = 64 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Shelves = append(cfg.Shelves[:0:0], cfg.Shelves...)
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if _, err := Load(writeFile(t, "stack: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}
