package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpal/internal/config"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, "json", slog.LevelInfo)).Info("chat timing", "total_ms", 12)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "chat timing", rec["msg"])
	assert.EqualValues(t, 12, rec["total_ms"])

	buf.Reset()
	logger := slog.New(newHandler(&buf, "text", slog.LevelWarn))
	logger.Info("dropped")
	logger.Warn("kept", "error", "boom")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept error=boom")
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindpal.log")
	logger, closer, err := New(config.LogConfig{Format: "text", Level: "info", File: path})
	require.NoError(t, err)
	logger.Info("server started", "addr", ":8000")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "server started"))

	_, _, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
