package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command> [arg]

commands:
  up                 apply all pending migrations
  down               roll back the latest migration
  status             list migrations and whether they are applied
  to <version>       move the schema to YYYYMMDDHHMMSS
  create <name>      write a new migration into -dir
  validate           check filenames and goose sections
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := flag.Arg(0), flag.Arg(1)
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": command, "dir": *dir})

	// create and validate work on files only.
	switch command {
	case "create":
		if arg == "" {
			exitf("create needs a migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(*dir)); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	logg = logger.ForService("migrate", cfg.App)
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": command, "dir": *dir, "env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir))
	requireResource(ctx, logg, "migration runner", err)

	switch command {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			exitf("%v", err)
		}
		report(ctx, logg, applied)
	case "down":
		applied, err := runner.Down(ctx)
		if err != nil {
			exitf("%v", err)
		}
		if applied != nil {
			report(ctx, logg, []migrate.Applied{*applied})
		}
	case "status":
		rows, err := runner.Status(ctx)
		if err != nil {
			exitf("%v", err)
		}
		printStatus(rows)
	case "to":
		if arg == "" {
			exitf("to needs a target version")
		}
		applied, err := runner.MigrateTo(ctx, arg)
		if err != nil {
			exitf("%v", err)
		}
		report(ctx, logg, applied)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func report(ctx context.Context, logg *logger.Logger, applied []migrate.Applied) {
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":   m.Version,
			"path":      m.Path,
			"direction": m.Direction,
		}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "count", len(applied)), "migrate finished")
}

func printStatus(rows []migrate.StatusRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tFILE")
	for _, row := range rows {
		state := "pending"
		if row.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", row.Version, state, row.Path)
	}
	_ = w.Flush()
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
