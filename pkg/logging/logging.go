package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is the structured logging interface used across the engine.
// Components receive a Logger pre-scoped with their identifying fields.
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(msg string, fields ...Fields)
	WithFields(fields Fields) Logger
}

type zapLogger struct {
	base *zap.Logger
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	global = newZapLogger()
)

func newZapLogger() *zapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return &zapLogger{base: zap.New(core)}
}

// NewDefaultLogger returns the process-wide logger.
func NewDefaultLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithFields returns the process-wide logger scoped with the given fields.
func WithFields(fields Fields) Logger {
	return NewDefaultLogger().WithFields(fields)
}

// SetLevel adjusts the minimum level for all loggers derived from this package.
// Accepted values: debug, info, warn, error. Unknown values leave the level unchanged.
func SetLevel(name string) {
	switch name {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "info":
		level.SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	}
}

func (l *zapLogger) WithFields(fields Fields) Logger {
	return &zapLogger{base: l.base.With(zapFields(fields)...)}
}

func (l *zapLogger) Debug(msg string, fields ...Fields) { l.log(zapcore.DebugLevel, msg, fields) }
func (l *zapLogger) Info(msg string, fields ...Fields)  { l.log(zapcore.InfoLevel, msg, fields) }
func (l *zapLogger) Warn(msg string, fields ...Fields)  { l.log(zapcore.WarnLevel, msg, fields) }
func (l *zapLogger) Error(msg string, fields ...Fields) { l.log(zapcore.ErrorLevel, msg, fields) }

func (l *zapLogger) log(lvl zapcore.Level, msg string, fields []Fields) {
	if ce := l.base.Check(lvl, msg); ce != nil {
		var zf []zap.Field
		for _, f := range fields {
			zf = append(zf, zapFields(f)...)
		}
		ce.Write(zf...)
	}
}

func zapFields(fields Fields) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

// NopLogger returns a logger that discards everything. Useful in tests.
func NopLogger() Logger {
	return &zapLogger{base: zap.NewNop()}
}
