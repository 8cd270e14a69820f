// Package logging provides the process-wide structured logger.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// ZkLoggerAdapter routes the ZooKeeper client's internal log lines
// through the same zap logger everything else uses.
type ZkLoggerAdapter struct{}

func (*ZkLoggerAdapter) Printf(format string, args ...interface{}) {
	Sugar().Infof("[zookeeper] "+format, args...)
}

func iso8601TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// Log returns the process-wide logger, building it on first use.
func Log() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = iso8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		l, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		logger = l
	})
	return logger
}

// Sugar returns the sugared form of Log().
func Sugar() *zap.SugaredLogger {
	return Log().Sugar()
}

// SetForTesting installs l as the process-wide logger and returns a
// restore function. Intended for _test.go files only.
func SetForTesting(l *zap.Logger) func() {
	once.Do(func() {})
	prev := logger
	logger = l
	return func() { logger = prev }
}
