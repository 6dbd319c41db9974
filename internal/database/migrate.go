package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"huddle/internal/middleware"
)

// Migration is one versioned pair of embedded SQL scripts.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations []Migration

func init() {
	loaded, err := loadMigrations(migrationFS, "migrations")
	if err != nil {
		middleware.Logger.Error("Embedded migrations unreadable", slog.String("error", err.Error()))
		return
	}
	migrations = loaded
}

// splitMigrationName turns "000004_event_invites" into (4, "event_invites").
func splitMigrationName(base string) (int, string, bool) {
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

// loadMigrations reads every NNNNNN_name.up.sql in dir together with its
// .down.sql twin. A missing down script is an error.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	ups, err := fs.Glob(fsys, dir+"/*.up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(ups))
	seen := make(map[int]string, len(ups))
	for _, upPath := range ups {
		base := strings.TrimSuffix(upPath[len(dir)+1:], ".up.sql")
		version, name, ok := splitMigrationName(base)
		if !ok {
			middleware.Logger.Warn("Skipping badly named migration", slog.String("file", upPath))
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %06d used by both %s and %s", version, prev, base)
		}
		seen[version] = base

		up, err := fs.ReadFile(fsys, upPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", upPath, err)
		}
		down, err := fs.ReadFile(fsys, dir+"/"+base+".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", base, err)
		}
		out = append(out, Migration{Version: version, Name: name, UpScript: string(up), DownScript: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetMigrations returns the registered migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns nil for an unknown version.
func GetMigrationByVersion(version int) *Migration {
	i := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
	if i < len(migrations) && migrations[i].Version == version {
		return &migrations[i]
	}
	return nil
}

// pendingMigrations filters registered down to versions not in applied.
func pendingMigrations(registered []Migration, applied []int) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []Migration
	for _, m := range registered {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}
