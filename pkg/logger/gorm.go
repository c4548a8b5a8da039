package logger

import (
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Gorm routes gorm's warnings, errors and slow queries to l. Lookups that find
// nothing are expected and are not logged.
func Gorm(l *zap.Logger) gormlogger.Interface {
	std, err := zap.NewStdLogAt(l.WithOptions(zap.AddCallerSkip(2)), zap.WarnLevel)
	if err != nil {
		std = zap.NewStdLog(l)
	}
	return gormlogger.New(std, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
