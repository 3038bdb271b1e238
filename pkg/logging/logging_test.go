package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &zapLogger{base: zap.New(core)}, logs
}

func TestLoggerFields(t *testing.T) {
	logger, logs := observedLogger()

	logger.Info("session connected", Fields{"session_id": "abc", "channels": 8})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "session connected", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "abc", ctx["session_id"])
	assert.EqualValues(t, 8, ctx["channels"])
}

func TestWithFieldsScoping(t *testing.T) {
	logger, logs := observedLogger()

	scoped := logger.WithFields(Fields{"component": "dispatcher"})
	scoped.Warn("subscriber dropped", Fields{"subscriber_id": "s1"})

	entries := logs.All()
	require.Len(t, entries, 1)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "dispatcher", ctx["component"])
	assert.Equal(t, "s1", ctx["subscriber_id"])

	// The parent logger is unaffected by the scoped one.
	logger.Info("plain")
	assert.NotContains(t, logs.All()[1].ContextMap(), "component")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Debug("ignored")
	logger.Error("also ignored", Fields{"k": "v"})
	assert.NotNil(t, logger.WithFields(Fields{"k": "v"}))
}
