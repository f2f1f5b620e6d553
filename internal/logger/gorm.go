package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output to zap under the "gorm" name.
type GormLogger struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger returns a GORM logger writing to zapLogger. Statements
// slower than slowThreshold are reported as warnings; zero disables that.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        zapLogger.Named("gorm"),
		logLevel:      level,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.enabled(gormlogger.Info) {
		l.logger.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.enabled(gormlogger.Warn) {
		l.logger.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.enabled(gormlogger.Error) {
		l.logger.Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement. A missing row is how the store learns
// that a task id is unknown, so it is not an error here.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if !l.enabled(gormlogger.Error) {
		return
	}

	elapsed := time.Since(begin)
	statement := func() []zap.Field {
		sql, rows := fc()
		fields := []zap.Field{
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		}
		if id := GetRequestID(ctx); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		return fields
	}

	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	switch {
	case err != nil:
		if !errors.Is(err, gormlogger.ErrRecordNotFound) {
			l.logger.Error("sql error", append(statement(), zap.Error(err))...)
		}
	case slow && l.enabled(gormlogger.Warn):
		l.logger.Warn("slow query", append(statement(), zap.Duration("threshold", l.slowThreshold))...)
	case l.enabled(gormlogger.Info):
		l.logger.Debug("sql", statement()...)
	}
}

func (l *GormLogger) enabled(level gormlogger.LogLevel) bool {
	return l.logLevel >= level
}

// MapGormLogLevel turns the sql_level setting into a GORM level. Unknown
// values mean warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
