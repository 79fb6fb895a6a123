package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("ProductionDefaultsToInfo", func(t *testing.T) {
		l, err := New("prod", "")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("DevelopmentDefaultsToDebug", func(t *testing.T) {
		l, err := New("dev", "")
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("LevelOverride", func(t *testing.T) {
		l, err := New("dev", "warn")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("BadLevel", func(t *testing.T) {
		_, err := New("dev", "loud")
		assert.Error(t, err)
	})
}

func TestNewRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l, closeFn := NewRotatingFile(RotatingFileConfig{Path: path, MaxSizeMB: 1})

	l.Info("booking event", zap.String("booking_id", "b1"))
	require.NoError(t, l.Sync())
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "booking event", entry["msg"])
	assert.Equal(t, "b1", entry["booking_id"])
	assert.Contains(t, entry, "logged_at")
}
