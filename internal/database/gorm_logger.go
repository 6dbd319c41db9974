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
	"huddle/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger sends GORM output to slog. Failed queries log at error, slow
// ones at warn, and every query at info when the level allows it.
type GormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger traces every query in development and only problems elsewhere.
func NewGormLogger(cfg *config.Config) *GormLogger {
	level := logger.Warn
	if cfg != nil && cfg.Env == "development" {
		level = logger.Info
	}
	return &GormLogger{log: middleware.Logger, level: level, slow: slowQueryThreshold}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) emit(ctx context.Context, at logger.LogLevel, lvl slog.Level, msg string, attrs ...any) {
	if l.level >= at {
		l.log.Log(ctx, lvl, msg, attrs...)
	}
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Info, slog.LevelInfo, fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Warn, slog.LevelWarn, fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Error, slog.LevelError, fmt.Sprintf(msg, data...))
}

// Trace is called by GORM after every statement. Record-not-found is an
// expected outcome and is not logged as an error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	operation, table := queryLabels(sql)
	observability.ObserveQuery(operation, table, elapsed)
	if l.level <= logger.Silent {
		return
	}
	attrs := []any{slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed)}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.emit(ctx, logger.Error, slog.LevelError, "GORM query error", append(attrs, slog.String("error", err.Error()))...)
	case l.slow > 0 && elapsed > l.slow:
		l.emit(ctx, logger.Warn, slog.LevelWarn, "GORM slow query", attrs...)
	default:
		l.emit(ctx, logger.Info, slog.LevelInfo, "GORM query", attrs...)
	}
}

// queryLabels pulls the statement verb and target table out of GORM's SQL for
// the latency histogram. Anything unrecognised is reported as "other".
func queryLabels(sql string) (operation, table string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "other", "unknown"
	}

	operation = strings.ToLower(fields[0])
	var after string
	switch operation {
	case "select", "delete":
		after = "from"
	case "insert":
		after = "into"
	case "update":
		if len(fields) > 1 {
			return operation, tableName(fields[1])
		}
		return operation, "unknown"
	default:
		return "other", "unknown"
	}

	for i := 1; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], after) {
			return operation, tableName(fields[i+1])
		}
	}
	return operation, "unknown"
}

func tableName(token string) string {
	if i := strings.IndexByte(token, '('); i >= 0 {
		token = token[:i]
	}
	token = strings.Trim(token, "\"`;,")
	if token == "" {
		return "unknown"
	}
	return strings.ToLower(token)
}
