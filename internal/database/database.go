// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"huddle/internal/config"
	"huddle/internal/middleware"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	// DB is the global primary connection.
	DB *gorm.DB
	// ReadDB is the optional read replica connection.
	ReadDB *gorm.DB
)

// ConnectOptions controls what Connect does after the connection is open.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the primary (and read replica, when configured) connection and applies the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens the database connections. cmd/migrate uses it with
// ApplySchema disabled so it can drive migrations itself.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	dsn := buildDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	dbInstance, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := configurePool(dbInstance, cfg); err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected successfully", slog.String("host", cfg.DBHost), slog.String("db", cfg.DBName))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), dbInstance, cfg); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		middleware.Logger.Info("Database schema ready", slog.String("mode", normalizedSchemaMode(cfg)))
	}

	ReadDB = nil
	if cfg.DBReadHost != "" {
		readDSN := buildDSN(cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode)
		replica, err := gorm.Open(postgres.Open(readDSN), &gorm.Config{Logger: NewGormLogger(cfg)})
		if err != nil {
			middleware.Logger.Warn("Read replica unavailable, reads use the primary", slog.String("error", err.Error()))
		} else if err := configurePool(replica, cfg); err == nil {
			ReadDB = replica
			middleware.Logger.Info("Read replica connected", slog.String("host", cfg.DBReadHost))
		}
	}

	DB = dbInstance
	return DB, nil
}

func buildDSN(host, port, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode,
	)
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}

	maxOpen := cfg.DBMaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.DBMaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.DBConnMaxLifetimeMinutes
	if lifetime <= 0 {
		lifetime = 5
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(lifetime) * time.Minute)
	return nil
}

// GetReadDB returns the read replica when one is connected, otherwise nil.
func GetReadDB() *gorm.DB {
	return ReadDB
}

// IsUniqueViolation reports whether err is a unique constraint violation from
// postgres (SQLSTATE 23505) or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
