package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Format: "json", Console: true, Stdout: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("sent", zap.String("line", "AGREE"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "AGREE", entry["line"])
}

func TestNewFiltersLevelAndWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Console: true, File: path, Stdout: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", zap.String("game_id", "g1"))
	require.NoError(t, logger.Sync())
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hidden")
	assert.True(t, strings.Contains(string(raw), "WARN | "), "legacy layout uses pipe separators")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewWithoutOutputs(t *testing.T) {
	logger, closeFn, err := New(Options{})
	require.NoError(t, err)
	assert.NoError(t, closeFn())
	logger.Info("dropped")
}
