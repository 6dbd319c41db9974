package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"huddle/internal/config"
	"huddle/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func captureGormLogger(level logger.LogLevel) (*GormLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &GormLogger{log: log, level: level, slow: slowQueryThreshold}, &buf
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return `SELECT * FROM "groups"`, 3 }

	l, buf := captureGormLogger(logger.Warn)
	l.Trace(ctx, time.Now(), query, nil)
	assert.Empty(t, buf.String(), "fast queries are quiet at warn")

	l.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.Trace(ctx, time.Now(), query, errors.New("deadlock detected"))
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "deadlock detected")

	l, buf = captureGormLogger(logger.Info)
	l.Trace(ctx, time.Now(), query, nil)
	assert.Contains(t, buf.String(), "rows=3")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), query, errors.New("ignored"))
	assert.Empty(t, buf.String())
	l.Info(ctx, "connected to %s", "primary")
	assert.True(t, strings.Contains(buf.String(), "connected to primary"))
}

func TestNewGormLogger_Levels(t *testing.T) {
	assert.Equal(t, logger.Info, NewGormLogger(&config.Config{Env: "development"}).level)
	assert.Equal(t, logger.Warn, NewGormLogger(&config.Config{Env: "production"}).level)
	assert.Equal(t, logger.Warn, NewGormLogger(nil).level)
}

func TestQueryLabels(t *testing.T) {
	tests := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "groups" WHERE "groups"."id" = 1`, "select", "groups"},
		{`SELECT count(*) FROM "group_members" WHERE group_id = 2`, "select", "group_members"},
		{`INSERT INTO "friendships" ("requester_id","addressee_id") VALUES (1,2)`, "insert", "friendships"},
		{"INSERT INTO `posts`(`content`) VALUES ('x')", "insert", "posts"},
		{`UPDATE "events" SET "participant_count"=3`, "update", "events"},
		{`DELETE FROM "devices" WHERE token = 'abc'`, "delete", "devices"},
		{`SELECT 1`, "select", "unknown"},
		{`BEGIN`, "other", "unknown"},
		{"", "other", "unknown"},
	}
	for _, tt := range tests {
		operation, table := queryLabels(tt.sql)
		assert.Equal(t, tt.operation, operation, tt.sql)
		assert.Equal(t, tt.table, table, tt.sql)
	}
}

func TestGormLogger_TraceRecordsLatencyWhenSilent(t *testing.T) {
	l, buf := captureGormLogger(logger.Silent)
	query := func() (string, int64) { return `SELECT * FROM "trace_latency_test"`, 1 }
	l.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), query, nil)
	assert.Empty(t, buf.String())

	var m dto.Metric
	require.NoError(t, observability.DatabaseQueryLatency.WithLabelValues("select", "trace_latency_test").(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleSum(), 0.05)
}
