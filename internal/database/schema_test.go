package database

import (
	"context"
	"testing"

	"huddle/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name            string
		cfg             config.Config
		runSQL, runAuto bool
		wantErr         bool
	}{
		{"hybrid development", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid production", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"empty mode defaults to hybrid", config.Config{Env: "test"}, true, true, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto in test", config.Config{Env: "test", DBSchemaMode: "auto"}, false, true, false},
		{"auto refused in production", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto allowed when destructive opted in", config.Config{Env: "staging", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"unknown mode", config.Config{Env: "test", DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, plan.runSQL)
			assert.Equal(t, tt.runAuto, plan.runAuto)
		})
	}
}

func TestApplySchema_AutoModeOnSQLite(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{Env: "test", DBSchemaMode: SchemaModeAuto}

	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	assert.True(t, db.Migrator().HasTable("notifications"))

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
}
