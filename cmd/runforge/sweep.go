package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/gc"
	"github.com/Strob0t/RunForge/internal/logger"
	"github.com/Strob0t/RunForge/internal/service"
)

// runSweep triggers a single sweep (or a full cleanup with -all) and prints
// the report.
func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	all := fs.Bool("all", false, "remove every managed environment regardless of policy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

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

	var report *gc.Report
	if *all {
		report, err = gcSvc.CleanupAll(ctx)
	} else {
		report, err = gcSvc.RunGC(ctx)
	}
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *gc.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "removed\t%d\n", len(report.Removed))
	fmt.Fprintf(w, "archived\t%d\n", len(report.Archived))
	fmt.Fprintf(w, "errors\t%d\n", len(report.Errors))
	for _, e := range report.Errors {
		fmt.Fprintf(w, "\t%s: %s\n", e.EnvironmentID, e.Err)
	}
	_ = w.Flush()
}
