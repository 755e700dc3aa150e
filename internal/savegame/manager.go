package savegame

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"shelfcore/internal/blob"
	"shelfcore/internal/catalog"
	"shelfcore/internal/economy"
	"shelfcore/internal/furniture"
	"shelfcore/internal/region"
	"shelfcore/internal/scene"
	"shelfcore/internal/stack"
	"shelfcore/internal/tasks"
	"shelfcore/pkg/domain"
)

// DefaultKey is the blob key saves are written to.
const DefaultKey = "saves/bookstore.json"

// DefaultReconnectDelayTicks is how long stack and display reconnection waits
// after the scene has been rebuilt.
const DefaultReconnectDelayTicks = 2

// MaxReconnectDelayTicks caps the reconnect delay so a settling session always
// finishes a load within its tick budget.
const MaxReconnectDelayTicks = 32

// Config tunes where and how saves are written.
type Config struct {
	Key                 string `yaml:"key"`
	ReconnectDelayTicks int    `yaml:"reconnect_delay_ticks" validate:"gte=0,lte=32"`
}

// Migrator upgrades a save written by an unsupported version. It returns the
// upgraded document and true, or false when it cannot migrate.
type Migrator interface {
	Migrate(version int, raw []byte) ([]byte, bool)
}

// NoMigration rejects every out-of-range save.
type NoMigration struct{}

// Migrate implements Migrator.
func (NoMigration) Migrate(int, []byte) ([]byte, bool) { return nil, false }

// Clock provides the save timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Scene groups the live collaborators a save is captured from and rebuilt into.
type Scene struct {
	Registry *scene.Registry
	Engine   *stack.Engine
	Resolver *region.Resolver
	Builder  *furniture.Builder
	Queue    *tasks.Queue
	Catalog  catalog.Catalog
	Wallet   *economy.Wallet
	Calendar *economy.Calendar
}

// Manager saves and loads one store through a blob store.
type Manager struct {
	scene    Scene
	store    blob.Store
	cfg      Config
	migrator Migrator
	clock    Clock
	logger   domain.Logger

	pending []tasks.TaskID
	last    *LoadReport
}

// Option customises a Manager.
type Option func(*Manager)

// WithMigrator installs a migration hook for out-of-range versions.
func WithMigrator(m Migrator) Option {
	return func(mgr *Manager) {
		if m != nil {
			mgr.migrator = m
		}
	}
}

// WithClock overrides the save timestamp source.
func WithClock(c Clock) Option {
	return func(mgr *Manager) {
		if c != nil {
			mgr.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l domain.Logger) Option {
	return func(mgr *Manager) { mgr.logger = domain.LoggerOrNoop(l) }
}

var validate = validator.New()

// NewManager constructs a manager. Zero config fields fall back to DefaultKey and
// DefaultReconnectDelayTicks; longer delays are cut to MaxReconnectDelayTicks.
func NewManager(sc Scene, store blob.Store, cfg Config, opts ...Option) *Manager {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.ReconnectDelayTicks <= 0 {
		cfg.ReconnectDelayTicks = DefaultReconnectDelayTicks
	}
	if cfg.ReconnectDelayTicks > MaxReconnectDelayTicks {
		cfg.ReconnectDelayTicks = MaxReconnectDelayTicks
	}
	m := &Manager{
		scene:    sc,
		store:    store,
		cfg:      cfg,
		migrator: NoMigration{},
		clock:    systemClock{},
		logger:   domain.NoopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the blob key saves are written to.
func (m *Manager) Key() string { return m.cfg.Key }

// LastReport returns the report of the most recent load, or nil.
func (m *Manager) LastReport() *LoadReport { return m.last }

// Exists reports whether a save file is present.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, err := m.store.Head(ctx, m.cfg.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat save %s: %w", m.cfg.Key, err)
	}
	return true, nil
}

// Delete removes the save file. It reports whether one existed.
func (m *Manager) Delete(ctx context.Context) (bool, error) {
	return m.store.Delete(ctx, m.cfg.Key)
}

// Reconnecting reports whether the last load still has stacks or display
// attachments waiting to be reconnected.
func (m *Manager) Reconnecting() bool { return len(m.pending) > 0 }

// finishLoad runs the pending reconnection of the last load right away. Until it
// runs, stacked and mounted books sit loose at the scene root and their
// placement lives only in the restorer.
func (m *Manager) finishLoad() {
	if len(m.pending) == 0 {
		return
	}
	ran := 0
	for _, id := range append([]tasks.TaskID(nil), m.pending...) {
		ran += m.scene.Queue.RunNow(id)
	}
	m.pending = nil
	m.logger.Info("reconnect forced before save", "key", m.cfg.Key, "tasks", ran)
}

// Save captures the scene and replaces the save file as a whole. A load whose
// reconnection is still pending is completed first.
func (m *Manager) Save(ctx context.Context) (Record, error) {
	m.finishLoad()
	rec := Capture(m.scene, m.clock.Now())
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("encode save: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"save-version": fmt.Sprint(rec.SaveVersion)},
		Overwrite:   true,
	}
	if _, err := m.store.Put(ctx, m.cfg.Key, bytes.NewReader(data), opts); err != nil {
		return Record{}, fmt.Errorf("write save %s: %w", m.cfg.Key, err)
	}
	m.logger.Info("game saved", "key", m.cfg.Key, "books", len(rec.Books), "shelves", len(rec.Shelves), "day", rec.CurrentDay)
	return rec, nil
}

// Read fetches and validates the save file without touching the scene.
// Unreadable and incompatible files are deleted.
func (m *Manager) Read(ctx context.Context) (Record, error) {
	_, rc, err := m.store.Get(ctx, m.cfg.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return Record{}, ErrNoSave
	}
	if err != nil {
		return Record{}, fmt.Errorf("read save %s: %w", m.cfg.Key, err)
	}
	raw, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return Record{}, fmt.Errorf("read save %s: %w", m.cfg.Key, err)
	}
	rec, err := m.decode(raw)
	if err != nil {
		m.discard(ctx, err)
		return Record{}, err
	}
	return rec, nil
}

func (m *Manager) decode(raw []byte) (Record, error) {
	var probe struct {
		SaveVersion *int `json:"saveVersion"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if probe.SaveVersion == nil {
		return Record{}, fmt.Errorf("%w: missing saveVersion", ErrCorruptSave)
	}
	if v := *probe.SaveVersion; !compatible(v) {
		upgraded, ok := m.migrator.Migrate(v, raw)
		if !ok {
			return Record{}, IncompatibleVersionError{Version: v}
		}
		m.logger.Info("save migrated", "from", v)
		raw = upgraded
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if !compatible(rec.SaveVersion) {
		return Record{}, IncompatibleVersionError{Version: rec.SaveVersion}
	}
	if err := validate.Struct(rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	return rec, nil
}

func compatible(v int) bool {
	return v >= MinCompatibleVersion && v <= CurrentVersion
}

func (m *Manager) discard(ctx context.Context, reason error) {
	if _, err := m.store.Delete(ctx, m.cfg.Key); err != nil {
		m.logger.Error("delete rejected save", "key", m.cfg.Key, "error", err)
		return
	}
	m.logger.Warn("save discarded", "key", m.cfg.Key, "reason", reason)
}

// Load reads the save file and rebuilds the scene from it. Version and decode
// failures abort before anything is mutated. Stacks and display attachments are
// reconnected ReconnectDelayTicks later through the task queue; the returned
// report is completed at that point.
func (m *Manager) Load(ctx context.Context) (*LoadReport, error) {
	rec, err := m.Read(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range m.pending {
		m.scene.Queue.Cancel(id)
	}
	m.pending = nil
	report := &LoadReport{Version: rec.SaveVersion}
	r := &restorer{sc: m.scene, logger: m.logger, report: report}
	r.restoreScalars(rec)
	m.scene.Registry.Clear()
	r.restoreFurniture(rec)
	r.restoreBooks(rec)

	reconnect := m.scene.Queue.After("savegame-reconnect-stacks", m.cfg.ReconnectDelayTicks, r.reconnectStacks)
	attach := m.scene.Queue.Then("savegame-attach-displays", reconnect, func() {
		r.attachDisplays(rec)
		report.Complete = true
		m.pending = nil
		m.logger.Info("game loaded", "key", m.cfg.Key, "loaded", report.Loaded, "skipped", report.Skipped,
			"orphaned", report.Orphaned, "stacks", report.Stacks, "attachments", report.Attachments)
	})
	m.pending = []tasks.TaskID{reconnect, attach}
	m.last = report
	return report, nil
}
