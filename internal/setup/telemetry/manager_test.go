package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManagerGetLoggers(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()

	// Pre-existing sessions beyond the retention limit are removed
	for _, name := range []string{"old_a", "old_b", "old_c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(logDir, name), 0o755))
	}

	manager := telemetry.NewManager("test", logDir, &config.Debug{
		LogLevel:      "info",
		MaxLogsToKeep: 2,
		MaxLogLines:   100,
	})

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("hello", zap.String("key", "value"))
	dbLogger.Error("query failed", zap.Bool(telemetry.AuditGapField, true))
	require.NoError(t, mainLogger.Sync())

	sessionDir := manager.GetCurrentSessionDir()
	assert.FileExists(t, filepath.Join(sessionDir, "main.log"))
	assert.FileExists(t, filepath.Join(sessionDir, "database.log"))
	assert.NotEmpty(t, manager.GetInstanceID())

	sessions, err := filepath.Glob(filepath.Join(logDir, "*"))
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	data, err := os.ReadFile(filepath.Join(sessionDir, "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestManagerInvalidLevel(t *testing.T) {
	t.Parallel()

	manager := telemetry.NewManager("test", t.TempDir(), &config.Debug{LogLevel: "loud"})

	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}

func TestCoreForwardsOnlyErrors(t *testing.T) {
	t.Parallel()

	core := telemetry.NewCore(zapcore.ErrorLevel).With([]zapcore.Field{zap.Int64("userID", 7)})

	assert.False(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	require.NoError(t, core.Write(zapcore.Entry{Level: zapcore.ErrorLevel, Message: "boom"}, []zapcore.Field{
		zap.String("chatID", "1"),
		zap.Float64("confidence", 91.5),
	}))
	require.NoError(t, core.Sync())
}
