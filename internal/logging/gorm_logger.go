package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormZapLogger routes GORM statements to zap.
type GormZapLogger struct {
	ZapLogger *zap.Logger
	LogLevel  logger.LogLevel
}

// NewGormZapLogger logs warnings and slow queries by default. Statements are
// only traced at logger.Info.
func NewGormZapLogger(zapLogger *zap.Logger) *GormZapLogger {
	return &GormZapLogger{
		ZapLogger: zapLogger.Named("gorm"),
		LogLevel:  logger.Warn,
	}
}

func (l *GormZapLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(logger.Info, zap.InfoLevel, msg, data)
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(logger.Warn, zap.WarnLevel, msg, data)
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(logger.Error, zap.ErrorLevel, msg, data)
}

func (l *GormZapLogger) printf(min logger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.LogLevel < min {
		return
	}
	l.ZapLogger.Sugar().Logf(level, msg, data...)
}

// Trace logs a finished statement. Record-not-found and duplicate-key errors
// log at debug.
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && (errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)):
		l.ZapLogger.Debug("GORM Trace", append(fields, zap.Error(err))...)
	case err != nil && l.LogLevel >= logger.Error:
		l.ZapLogger.Error("GORM Trace", append(fields, zap.Error(err))...)
	case elapsed > slowQueryThreshold && l.LogLevel >= logger.Warn:
		l.ZapLogger.Warn("GORM Trace [SLOW]", fields...)
	case l.LogLevel >= logger.Info:
		l.ZapLogger.Info("GORM Trace", fields...)
	}
}
