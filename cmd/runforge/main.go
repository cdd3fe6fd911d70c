package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Strob0t/RunForge/internal/adapter/miniostore"
	rfnats "github.com/Strob0t/RunForge/internal/adapter/nats"
	"github.com/Strob0t/RunForge/internal/adapter/postgres"
	"github.com/Strob0t/RunForge/internal/adapter/ristretto"
	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/logger"
	"github.com/Strob0t/RunForge/internal/port/archive"
	"github.com/Strob0t/RunForge/internal/port/database"
	"github.com/Strob0t/RunForge/internal/port/eventbus"
	"github.com/Strob0t/RunForge/internal/service"
)

func main() {
	args := os.Args[1:]

	var err error
	switch {
	case len(args) == 0, args[0] == "serve":
		err = runServe()
	case args[0] == "sweep":
		err = runSweep(args[1:])
	case args[0] == "prd":
		err = runPRD(args[1:])
	case args[0] == "help", args[0] == "--help":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", args[0])
	}

	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: runforge <command> [options]

Commands:
  serve   Run the reclamation daemon (default)
  sweep   Trigger one garbage collection sweep and exit
  prd     Manage PRD documents (list, import, export, validate)
  help    Show this help message
`)
}

// runServe starts the garbage collection daemon against the configured
// engine and blocks until SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"engine", cfg.Engine.Backend,
		"gc_interval", cfg.GC.Interval,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	d, cleanup, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engines, err := service.NewEngineService(ctx, *cfg, d.cache, log)
	if err != nil {
		return err
	}

	gcSvc := service.NewGCService(engines.Engine(), d.store, d.archiver, d.bus, cfg.GC, log)
	gcSvc.Start(ctx)
	defer gcSvc.Stop()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	log.Info("reclamation daemon started")
	<-done
	log.Info("shutting down")
	return nil
}

// deps bundles the shared infrastructure handles.
type deps struct {
	store    database.Store
	bus      eventbus.Publisher
	archiver archive.Archiver
	cache    *ristretto.Cache
}

// openDeps connects postgres, NATS, the cache and, when configured, the
// archive bucket. The returned cleanup closes everything in reverse order.
func openDeps(ctx context.Context, cfg *config.Config, log *slog.Logger) (*deps, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	bus, err := rfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("nats: %w", err)
	}

	c, err := ristretto.New(cfg.Cache.MaxSizeMB * 1024 * 1024)
	if err != nil {
		_ = bus.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("cache: %w", err)
	}

	d := &deps{store: postgres.NewStore(pool), bus: bus, cache: c}

	if cfg.Archive.Endpoint != "" {
		archiver, err := miniostore.Connect(ctx, cfg.Archive)
		if err != nil {
			c.Close()
			_ = bus.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("archive: %w", err)
		}
		d.archiver = archiver
	} else {
		log.Info("archive endpoint not configured, backups disabled")
	}

	cleanup := func() {
		c.Close()
		_ = bus.Close()
		pool.Close()
	}
	return d, cleanup, nil
}
