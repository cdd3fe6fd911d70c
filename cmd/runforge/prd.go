package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/Strob0t/RunForge/internal/adapter/postgres"
	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/logger"
	"github.com/Strob0t/RunForge/internal/service"
)

// runPRD dispatches the PRD subcommands (list, import, export, validate).
func runPRD(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printPRDHelp()
		return nil
	}

	switch args[0] {
	case "list":
		return runPRDList()
	case "import":
		return runPRDImport(args[1:])
	case "export":
		return runPRDExport(args[1:])
	case "validate":
		return runPRDValidate(args[1:])
	default:
		printPRDHelp()
		return fmt.Errorf("unknown prd command: %s", args[0])
	}
}

func printPRDHelp() {
	fmt.Fprintf(os.Stderr, `Usage: runforge prd <command> [options]

Commands:
  list       List stored PRD documents
  import     Import a markdown PRD file
  export     Export a PRD document to markdown
  validate   Check a stored document against the structural rules
  help       Show this help message

Examples:
  runforge prd import --file checkout.md
  runforge prd export --id prd-1a2b3c4d
  runforge prd list
`)
}

// loadPRDService connects the store and returns the PRD service plus a
// cleanup function.
func loadPRDService() (*service.PRDService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		closer.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	svc := service.NewPRDService(postgres.NewStore(pool), log)
	cleanup := func() {
		pool.Close()
		closer.Close()
	}
	return svc, cleanup, nil
}

func runPRDList() error {
	svc, cleanup, err := loadPRDService()
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTORIES\tBRANCH\tUPDATED")
	for i := range docs {
		d := &docs[i]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			d.ID, d.Title, len(d.UserStories), d.BranchName, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPRDImport(args []string) error {
	fs := flag.NewFlagSet("prd import", flag.ExitOnError)
	file := fs.String("file", "", "markdown file to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("prd import: --file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("prd import: %w", err)
	}

	svc, cleanup, err := loadPRDService()
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := svc.Import(context.Background(), content)
	if err != nil {
		return err
	}
	fmt.Printf("imported %s (%d stories)\n", doc.ID, len(doc.UserStories))
	return nil
}

func runPRDExport(args []string) error {
	fs := flag.NewFlagSet("prd export", flag.ExitOnError)
	id := fs.String("id", "", "document id to export")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("prd export: --id is required")
	}

	svc, cleanup, err := loadPRDService()
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := svc.Export(context.Background(), *id)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runPRDValidate(args []string) error {
	fs := flag.NewFlagSet("prd validate", flag.ExitOnError)
	id := fs.String("id", "", "document id to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("prd validate: --id is required")
	}

	svc, cleanup, err := loadPRDService()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.Validate(context.Background(), *id)
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Println("valid")
		return nil
	}
	printValidation(result)
	return fmt.Errorf("prd %s is invalid", *id)
}

func printValidation(result prd.ValidationResult) {
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "  - %s\n", msg)
	}
}
