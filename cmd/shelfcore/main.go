// Command shelfcore runs a bookstore session and serves its inspection API.
//
//	shelfcore [-config file] serve|save|load|inspect
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"shelfcore/internal/adapters/httpapi"
	"shelfcore/internal/blob"
	"shelfcore/internal/catalog"
	"shelfcore/internal/config"
	"shelfcore/internal/core"
	"shelfcore/pkg/domain"
)

var exitFunc = os.Exit

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shelfcore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("SHELFCORE_CONFIG"), "path to a YAML config file")
	verbose := fs.Bool("v", false, "log debug output")
	traceFile := fs.String("trace", "", "append operation spans to this file as JSON lines")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: shelfcore [-config file] [-v] [-trace file] serve|save|load|inspect")
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		return 1
	}
	app, err := open(ctx, cfg, logger, *traceFile)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer app.close(logger)

	switch cmd := fs.Arg(0); cmd {
	case "serve":
		err = app.serve(ctx, cfg.HTTP.Addr, logger)
	case "save":
		err = app.save(ctx, stdout)
	case "load":
		err = app.load(ctx, stdout)
	case "inspect":
		err = app.inspect(ctx, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
	if err != nil {
		logger.Error("command failed", "command", fs.Arg(0), "error", err)
		return 1
	}
	return 0
}

type application struct {
	svc      *core.Service
	catalog  catalog.Store
	registry *prometheus.Registry
	trace    *os.File
}

func open(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracePath string) (*application, error) {
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	cat, err := core.OpenCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	app := &application{catalog: cat, registry: reg}
	opts := []core.Option{core.WithLogger(logger), core.WithMetricsRecorder(metrics)}
	if tracePath != "" {
		f, err := os.OpenFile(tracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- operator supplied path
		if err != nil {
			_ = cat.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		app.trace = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	svc, err := core.NewService(cfg.Session(), store, cat, opts...)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.svc = svc
	return app, nil
}

func (a *application) close(logger *slog.Logger) {
	if err := a.catalog.Close(); err != nil {
		logger.Warn("close catalog", "error", err)
	}
	if a.trace != nil {
		_ = a.trace.Close()
	}
}

// restore loads the save when one exists and otherwise builds the demo store.
func (a *application) restore(ctx context.Context) error {
	st, err := a.svc.SaveStatus(ctx)
	if err != nil {
		return err
	}
	if !st.Exists {
		return seedStore(ctx, a.svc, a.catalog.Definitions())
	}
	if _, err := a.svc.Load(ctx); err != nil {
		return err
	}
	return a.svc.Settle(ctx)
}

func (a *application) serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	app := httpapi.New(a.svc, httpapi.Options{Gatherer: a.registry, Logger: logger, AccessLog: true})
	errc := make(chan error, 1)
	go func() { errc <- app.Listen(addr) }()
	logger.Info("serving", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func (a *application) save(ctx context.Context, w io.Writer) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	rec, err := a.svc.Save(ctx)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"key":         a.svc.Saves().Key(),
		"saveVersion": rec.SaveVersion,
		"books":       len(rec.Books),
		"shelves":     len(rec.Shelves),
		"currentDay":  rec.CurrentDay,
	})
}

func (a *application) load(ctx context.Context, w io.Writer) error {
	report, err := a.svc.Load(ctx)
	if err != nil {
		return err
	}
	if err := a.svc.Settle(ctx); err != nil {
		return err
	}
	return writeJSON(w, *report)
}

func (a *application) inspect(ctx context.Context, w io.Writer) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	return writeJSON(w, a.svc.Inventory())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// seedStore furnishes an empty store: one shelf per template in a row, a table
// with a display, the checkout terminal, and one delivered copy of every
// catalog book shelved on the first shelf.
func seedStore(ctx context.Context, svc *core.Service, defs []domain.BookDefinition) error {
	var shelves []string
	for i, name := range svc.Templates() {
		id, err := svc.SpawnShelf(ctx, name, "", domain.At(domain.V3(float64(i)*2, 0, 0)))
		if err != nil {
			return fmt.Errorf("seed shelf %s: %w", name, err)
		}
		shelves = append(shelves, id)
	}
	table, err := svc.SpawnTable(ctx, "", domain.At(domain.V3(0, 0, 3)), domain.V3(1.2, 0.8, 0.8))
	if err != nil {
		return fmt.Errorf("seed table: %w", err)
	}
	if _, err := svc.SpawnDisplay(ctx, "", table, domain.At(domain.V3(0, 0.8, 3))); err != nil {
		return fmt.Errorf("seed display: %w", err)
	}
	if _, err := svc.SpawnTerminal(ctx, "", domain.At(domain.V3(-2, 0, 3))); err != nil {
		return fmt.Errorf("seed terminal: %w", err)
	}
	if len(defs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	crate, err := svc.BuyBooks(ctx, ids, domain.At(domain.V3(0, 0, 1.5)))
	if err != nil {
		return fmt.Errorf("seed order: %w", err)
	}
	books, err := svc.OpenCrate(ctx, crate)
	if err != nil {
		return fmt.Errorf("seed crate: %w", err)
	}
	if len(shelves) == 0 {
		return nil
	}
	for _, b := range books {
		err := svc.PlaceOnShelf(ctx, b, shelves[0], "", -1)
		if errors.Is(err, domain.ErrRegionFull) {
			break
		}
		if err != nil {
			return fmt.Errorf("seed shelving: %w", err)
		}
	}
	return nil
}
