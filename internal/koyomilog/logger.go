// Package koyomilog provides the structured logging facade used across the
// engine. It wraps zap so that callers keep the short Printf-style API the
// rest of the codebase expects while the underlying encoder, level, and
// output sink stay configurable in one place.
package koyomilog

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	sug = newDefault()
)

func newDefault() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// SetLevel sets the global log level. Valid values are "DEBUG", "INFO",
// "WARN", "ERROR", "FATAL" (case-insensitive). Unknown values fall back to
// INFO.
func SetLevel(level string) {
	var zlevel zapcore.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		zlevel = zapcore.DebugLevel
	case "WARN":
		zlevel = zapcore.WarnLevel
	case "ERROR":
		zlevel = zapcore.ErrorLevel
	case "FATAL":
		zlevel = zapcore.FatalLevel
	default:
		zlevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zlevel)
	l, err := cfg.Build()
	if err != nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	sug = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sug
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { current().Fatalf(format, args...) }

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() {
	_ = current().Sync()
}
