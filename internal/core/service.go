// Package core wires the bookstore collaborators into one game session and
// exposes the player and persistence operations on top of them.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shelfcore/internal/blob"
	"shelfcore/internal/catalog"
	"shelfcore/internal/economy"
	"shelfcore/internal/furniture"
	"shelfcore/internal/placement"
	"shelfcore/internal/region"
	"shelfcore/internal/savegame"
	"shelfcore/internal/scene"
	"shelfcore/internal/stack"
	"shelfcore/internal/tasks"
	"shelfcore/pkg/domain"
)

// DefaultSettleTicks bounds how many ticks Settle advances.
const DefaultSettleTicks = 64

// Config holds the tunables a session is built from.
type Config struct {
	Stack           stack.Config
	Save            savegame.Config
	Templates       []furniture.ShelfTemplate
	StartingBalance float64
	StartingDay     int
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		Stack:           stack.DefaultConfig(),
		Templates:       furniture.DefaultTemplates(),
		StartingBalance: 500,
		StartingDay:     1,
	}
}

// Service is one running bookstore. All operations are serialised; the scene is
// only mutated from inside run.
type Service struct {
	mu sync.Mutex

	registry *scene.Registry
	queue    *tasks.Queue
	engine   *stack.Engine
	resolver *region.Resolver
	builder  *furniture.Builder
	placer   *placement.Placer
	catalog  catalog.Catalog
	wallet   *economy.Wallet
	calendar *economy.Calendar
	saves    *savegame.Manager
	moves    map[scene.NodeID]*furniture.MoveSession

	logger  domain.Logger
	clock   ClockFunc
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	saveOpt []savegame.Option
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the session logger. It is shared with every collaborator.
func WithLogger(l domain.Logger) Option {
	return func(s *Service) { s.logger = domain.LoggerOrNoop(l) }
}

// WithClock overrides the time source used for save stamps and audit entries.
func WithClock(c ClockFunc) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder installs an audit sink for mutating operations.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithSaveOptions forwards options to the save manager.
func WithSaveOptions(opts ...savegame.Option) Option {
	return func(s *Service) { s.saveOpt = append(s.saveOpt, opts...) }
}

// NewService builds a session over cat, writing saves to store.
func NewService(cfg Config, store blob.Store, cat catalog.Catalog, opts ...Option) (*Service, error) {
	if store == nil || cat == nil {
		return nil, fmt.Errorf("new service: blob store and catalog are required")
	}
	s := &Service{
		catalog: cat,
		moves:   make(map[scene.NodeID]*furniture.MoveSession),
		logger:  domain.NoopLogger{},
		clock:   func() time.Time { return time.Now().UTC() },
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(cfg.Templates) == 0 {
		cfg.Templates = furniture.DefaultTemplates()
	}
	s.registry = scene.NewRegistry()
	s.queue = tasks.NewQueue(s.logger)
	s.engine = stack.NewEngine(s.registry, s.queue, cfg.Stack, s.logger)
	s.resolver = region.NewResolver(s.registry, s.logger)
	s.builder = furniture.NewBuilder(s.registry, cfg.Templates, s.logger)
	s.placer = placement.New(s.registry, s.engine, s.resolver, cat, s.logger)
	s.wallet = economy.NewWallet(cfg.StartingBalance)
	s.calendar = economy.NewCalendar(cfg.StartingDay)
	saveOpts := append([]savegame.Option{savegame.WithLogger(s.logger), savegame.WithClock(s.clock)}, s.saveOpt...)
	s.saves = savegame.NewManager(s.scene(), store, cfg.Save, saveOpts...)
	return s, nil
}

func (s *Service) scene() savegame.Scene {
	return savegame.Scene{
		Registry: s.registry,
		Engine:   s.engine,
		Resolver: s.resolver,
		Builder:  s.builder,
		Queue:    s.queue,
		Catalog:  s.catalog,
		Wallet:   s.wallet,
		Calendar: s.calendar,
	}
}

// run serialises fn and reports it to the tracer, metrics and logger. subject
// identifies what the operation touched and feeds the audit entry when audit is
// set.
func (s *Service) run(ctx context.Context, op string, audit bool, fn func() (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	if err := ctx.Err(); err != nil {
		span.End(err)
		s.metrics.Observe(ctx, op, false, time.Since(start))
		return err
	}
	subject, err := fn()
	elapsed := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if audit {
		entry := AuditEntry{Operation: op, Status: AuditStatusSuccess, Subject: subject, At: s.clock(), Duration: elapsed}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Warn("operation failed", "op", op, "subject", subject, "error", err)
		return err
	}
	s.logger.Debug("operation completed", "op", op, "subject", subject, "duration", elapsed)
	return nil
}

// Registry exposes the spatial registry for read-only inspection.
func (s *Service) Registry() *scene.Registry { return s.registry }

// Wallet returns the store's wallet.
func (s *Service) Wallet() *economy.Wallet { return s.wallet }

// Calendar returns the store's calendar.
func (s *Service) Calendar() *economy.Calendar { return s.calendar }

// Saves returns the save manager.
func (s *Service) Saves() *savegame.Manager { return s.saves }

// Templates lists the shelf templates the session can spawn.
func (s *Service) Templates() []string { return s.builder.TemplateNames() }
