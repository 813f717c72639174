package sql

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/mozaichub/internal/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold is the duration above which statements are logged at
// warn level.
const slowQueryThreshold = 200 * time.Millisecond

// gormLog routes gorm's log output through internal/logger.
type gormLog struct {
	level gormlogger.LogLevel
}

func newGormLog(debug bool) *gormLog {
	if debug {
		return &gormLog{level: gormlogger.Info}
	}
	return &gormLog{level: gormlogger.Warn}
}

func (l *gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLog{level: level}
}

func (l *gormLog) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		logger.Debug("gorm: "+msg, args...)
	}
}

func (l *gormLog) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		logger.Warn("gorm: "+msg, args...)
	}
}

func (l *gormLog) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		logger.Error("gorm: "+msg, args...)
	}
}

func (l *gormLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		query, rows := fc()
		logger.Error("SQL failed after %s (rows=%d): %s: %v", elapsed, rows, query, err)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		query, rows := fc()
		logger.Warn("Slow SQL %s (rows=%d): %s", elapsed, rows, query)
	case l.level >= gormlogger.Info:
		query, rows := fc()
		logger.Debug("SQL %s (rows=%d): %s", elapsed, rows, query)
	}
}
