// Package config loads the shelfcore configuration from a YAML file and
// SHELFCORE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"shelfcore/internal/blob"
	"shelfcore/internal/core"
	"shelfcore/internal/furniture"
	"shelfcore/internal/savegame"
	"shelfcore/internal/stack"
)

// Config holds all shelfcore settings.
type Config struct {
	HTTP    HTTPConfig                `yaml:"http"`
	Save    savegame.Config           `yaml:"save"`
	Stack   stack.Config              `yaml:"stack"`
	Blob    blob.Config               `yaml:"blob"`
	Catalog core.CatalogConfig        `yaml:"catalog"`
	Economy EconomyConfig             `yaml:"economy"`
	Shelves []furniture.ShelfTemplate `yaml:"shelves" validate:"dive"`
}

// HTTPConfig holds the inspection API settings.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// EconomyConfig holds the state a new store starts with.
type EconomyConfig struct {
	StartingBalance float64 `yaml:"starting_balance" validate:"gte=0"`
	StartingDay     int     `yaml:"starting_day" validate:"gte=0"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	session := core.DefaultConfig()
	return Config{
		HTTP:    HTTPConfig{Addr: ":8080"},
		Save:    savegame.Config{Key: savegame.DefaultKey, ReconnectDelayTicks: savegame.DefaultReconnectDelayTicks},
		Stack:   session.Stack,
		Blob:    blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./data"},
		Catalog: core.CatalogConfig{Driver: core.CatalogMemory},
		Economy: EconomyConfig{StartingBalance: session.StartingBalance, StartingDay: session.StartingDay},
		Shelves: session.Templates,
	}
}

var validate = validator.New()

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Save.Key == "" {
		c.Save.Key = def.Save.Key
	}
	if c.Stack.MaxHeight == 0 {
		c.Stack.MaxHeight = def.Stack.MaxHeight
	}
	if c.Stack.TableThickness == 0 {
		c.Stack.TableThickness = def.Stack.TableThickness
	}
	if c.Stack.ShelfThickness == 0 {
		c.Stack.ShelfThickness = def.Stack.ShelfThickness
	}
	if len(c.Shelves) == 0 {
		c.Shelves = def.Shelves
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Shelves))
	for _, t := range c.Shelves {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("invalid config: duplicate shelf template %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// ApplyEnv overrides settings from SHELFCORE_* variables.
//
//	SHELFCORE_HTTP_ADDR
//	SHELFCORE_SAVE_KEY, SHELFCORE_SAVE_RECONNECT_DELAY_TICKS
//	SHELFCORE_STACK_MAX_HEIGHT
//	SHELFCORE_BLOB_DRIVER: fs|s3|memory, SHELFCORE_BLOB_FS_ROOT
//	SHELFCORE_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PREFIX, _PATH_STYLE,
//	_ACCESS_KEY_ID, _SECRET_ACCESS_KEY, _SESSION_TOKEN
//	SHELFCORE_CATALOG_DRIVER: memory|sqlite|postgres, SHELFCORE_CATALOG_FILE,
//	SHELFCORE_SQLITE_PATH, SHELFCORE_POSTGRES_DSN
//	SHELFCORE_STARTING_BALANCE, SHELFCORE_STARTING_DAY
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("SHELFCORE_HTTP_ADDR", &c.HTTP.Addr)
	str("SHELFCORE_SAVE_KEY", &c.Save.Key)
	integer("SHELFCORE_SAVE_RECONNECT_DELAY_TICKS", &c.Save.ReconnectDelayTicks)
	integer("SHELFCORE_STACK_MAX_HEIGHT", &c.Stack.MaxHeight)

	driver := string(c.Blob.Driver)
	str("SHELFCORE_BLOB_DRIVER", &driver)
	c.Blob.Driver = blob.Driver(strings.ToLower(driver))
	str("SHELFCORE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("SHELFCORE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("SHELFCORE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("SHELFCORE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("SHELFCORE_BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	boolean("SHELFCORE_BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle)
	str("SHELFCORE_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("SHELFCORE_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	str("SHELFCORE_BLOB_S3_SESSION_TOKEN", &c.Blob.S3.SessionToken)

	catalogDriver := string(c.Catalog.Driver)
	str("SHELFCORE_CATALOG_DRIVER", &catalogDriver)
	c.Catalog.Driver = core.CatalogDriver(strings.ToLower(catalogDriver))
	str("SHELFCORE_CATALOG_FILE", &c.Catalog.File)
	str("SHELFCORE_SQLITE_PATH", &c.Catalog.SQLitePath)
	str("SHELFCORE_POSTGRES_DSN", &c.Catalog.PostgresDSN)

	float("SHELFCORE_STARTING_BALANCE", &c.Economy.StartingBalance)
	integer("SHELFCORE_STARTING_DAY", &c.Economy.StartingDay)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Session converts the settings into a session configuration.
func (c Config) Session() core.Config {
	return core.Config{
		Stack:           c.Stack,
		Save:            c.Save,
		Templates:       c.Shelves,
		StartingBalance: c.Economy.StartingBalance,
		StartingDay:     c.Economy.StartingDay,
	}
}
