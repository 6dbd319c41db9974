package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"huddle/internal/middleware"

	"gorm.io/gorm"
)

// MigrationStore records which SQL migrations have run.
type MigrationStore interface {
	GetAppliedMigrations(ctx context.Context) ([]int, error)
	ApplyMigration(ctx context.Context, m Migration) error
	RemoveMigration(ctx context.Context, version int) error
}

// MigrationLog is one row of migration_logs.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

const migrationLogDDL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_migration_logs_applied_at ON migration_logs (applied_at);`

type gormMigrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a MigrationStore backed by the migration_logs table.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &gormMigrationStore{db: db}
}

// GetAppliedMigrations treats a missing migration_logs table as an empty history.
func (s *gormMigrationStore) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	var versions []int
	err := s.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error
	switch {
	case err == nil:
		return versions, nil
	case errors.Is(err, gorm.ErrRecordNotFound), isMissingTableError(err):
		return []int{}, nil
	default:
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	if strings.Contains(msg, "no such table") {
		return true
	}
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}

// ApplyMigration runs the up script and logs the version atomically.
func (s *gormMigrationStore) ApplyMigration(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m.String(), err)
		}
		if err := tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error; err != nil {
			return fmt.Errorf("record %s: %w", m.String(), err)
		}
		return nil
	})
}

func (s *gormMigrationStore) RemoveMigration(ctx context.Context, version int) error {
	if err := s.db.WithContext(ctx).Where("version = ?", version).Delete(&MigrationLog{}).Error; err != nil {
		return fmt.Errorf("forget migration %d: %w", version, err)
	}
	return nil
}

// RunMigrations applies every registered migration missing from migration_logs.
// It refuses to run when the log holds versions this binary does not know.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(migrationLogDDL).Error; err != nil {
		return fmt.Errorf("create migration_logs: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, migrations); err != nil {
		return err
	}

	pending := pendingMigrations(migrations, applied)
	if len(pending) == 0 {
		middleware.Logger.Debug("No pending migrations", slog.Int("applied", len(applied)))
		return nil
	}
	for _, m := range pending {
		start := time.Now()
		if err := store.ApplyMigration(ctx, m); err != nil {
			return err
		}
		middleware.Logger.Info("Migration applied",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	sorted := slices.Sorted(slices.Values(applied))
	for _, version := range sorted {
		known := slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == version })
		if !known {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs lists versions this build does not ship: %s (roll back with the newer binary or rebuild the database)",
		strings.Join(unknown, ", "))
}

// RollbackMigration runs the down script of an applied migration and drops its log row.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	if err := db.WithContext(ctx).Exec(m.DownScript).Error; err != nil {
		return fmt.Errorf("roll back %s: %w", m.String(), err)
	}
	if err := store.RemoveMigration(ctx, version); err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.String("migration", m.String()))
	return nil
}
