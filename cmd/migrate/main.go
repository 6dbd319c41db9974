// Command migrate applies, inspects and rolls back the Huddle database schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/middleware"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type command struct {
	args int
	help string
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {help: "apply pending SQL migrations", run: migrateUp},
	"auto":   {help: "run GORM automigrations for every model", run: migrateAuto},
	"status": {help: "print the schema mode and pending migrations", run: migrateStatus},
	"down":   {args: 1, help: "roll back one migration version", run: migrateDown},
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/migrate <command> [version]")
		for _, name := range []string{"up", "auto", "status", "down"} {
			fmt.Fprintf(os.Stderr, "  %-7s %s\n", name, commands[name].help)
		}
	}
	flag.Parse()

	cmd, ok := commands[flag.Arg(0)]
	if !ok || flag.NArg()-1 < cmd.args {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "ignoring unreadable .env file: %v\n", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fail("load config", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		fail("connect database", err)
	}

	if err := cmd.run(context.Background(), db, cfg, flag.Args()[1:]); err != nil {
		fail(flag.Arg(0), err)
	}
}

func fail(step string, err error) {
	middleware.Logger.Error("Migration command failed", "step", step, "error", err)
	os.Exit(1)
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return err
	}
	middleware.Logger.Info("SQL migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	middleware.Logger.Info("Automigrations applied")
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	middleware.Logger.Info("Schema status",
		"mode", status.Mode,
		"env", status.Environment,
		"run_sql", status.WillRunSQL,
		"run_auto", status.WillRunAutoMigrate,
		"applied", len(status.AppliedVersions),
		"pending", len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		fmt.Printf("pending %06d_%s\n", m.Version, m.Name)
	}
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil || version <= 0 {
		return fmt.Errorf("invalid version %q", args[0])
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return err
	}
	middleware.Logger.Info("Rolled back migration", "version", version)
	return nil
}
