package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewTestLogger(core)

	l.Info("note ingested", map[string]interface{}{"note_id": "n1", "entities": 3})
	l.Error("commit failed", map[string]interface{}{"error": errors.New("disk full")})
	l.Debugf("stage %s", "classifying")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "note ingested", entries[0].Message)
	assert.Equal(t, "n1", entries[0].ContextMap()["note_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "disk full", entries[1].ContextMap()["error"])
	assert.Equal(t, "stage classifying", entries[2].Message)
}

func TestLoggerDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewTestLogger(core)
	l.Enable(false)
	l.Warn("dropped", nil)
	assert.Zero(t, logs.Len())
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, InitLogger(path, false))

	GetLogger().Info("hello file", map[string]interface{}{"k": "v"})
	_ = GetLogger().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello file"`)
}
