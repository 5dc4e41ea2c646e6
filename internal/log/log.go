// Package log provides leveled, structured logging for the service.
package log

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     atomic.Pointer[zap.SugaredLogger]
	loggerOnce sync.Once
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the process-wide logger writing JSON lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.Sampling = nil
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		base, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			base = zap.NewNop()
		}
		logger.Store(base.Sugar())
	})
}

func current() *zap.SugaredLogger {
	initLogger()
	return logger.Load()
}

// SetLevel changes the minimum level. Unknown names fall back to info.
func SetLevel(name string) {
	initLogger()
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		l = zapcore.InfoLevel
	}
	level.SetLevel(l)
}

// Replace swaps the underlying logger. Tests use it with zaptest or zap.NewNop.
func Replace(l *zap.Logger) {
	initLogger()
	logger.Store(l.WithOptions(zap.AddCallerSkip(1)).Sugar())
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

// Error logs msg with err prepended to the key-value list.
func Error(msg string, err error, kv ...any) {
	current().Errorw(msg, append([]any{"err", err}, kv...)...)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = current().Sync()
}
