package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"huddle/internal/config"
	"huddle/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// Composite ordering indexes that struct tags cannot express. They back the
// notification feed cursor and the friendship sync cursor.
var autoMigrateIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_notifications_receiver_created ON notifications (receiver_id, created_at, id)",
	"CREATE INDEX IF NOT EXISTS idx_friendships_updated ON friendships (updated_at, id)",
}

// SchemaStatus is what cmd/migrate status prints.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan is the resolved DB_SCHEMA_MODE for one environment.
type schemaPlan struct {
	mode    string
	runSQL  bool
	runAuto bool
}

func isProdLikeEnv(env string) bool {
	return slices.Contains([]string{"production", "prod", "staging", "stage"}, strings.ToLower(strings.TrimSpace(env)))
}

func normalizedSchemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// planSchema resolves the mode. Hybrid skips AutoMigrate in production-like
// environments, and auto is refused there unless destructive changes were
// explicitly allowed.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: normalizedSchemaMode(cfg)}
	prodLike := isProdLikeEnv(cfg.Env)

	switch plan.mode {
	case SchemaModeSQL:
		plan.runSQL = true
	case SchemaModeHybrid:
		plan.runSQL, plan.runAuto = true, !prodLike
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is refused in %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.runAuto = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

func runAutoMigrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(PersistentModels()...); err != nil {
		return err
	}
	for _, stmt := range autoMigrateIndexes {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// ApplySchema brings the schema up to date according to DB_SCHEMA_MODE.
// SQL migrations always run before AutoMigrate.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.runAuto {
		return nil
	}

	if plan.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
		middleware.Logger.Warn("AutoMigrate running with DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true; review schema diffs before deploying")
	}
	middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
	if err := runAutoMigrate(ctx, db); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the effective plan and, when SQL migrations are in
// play, which of them are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
	}
	if !plan.runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(GetMigrations(), applied)
	return status, nil
}
