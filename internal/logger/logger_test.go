package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/theme"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))

	assert.True(t, IsValidLevel("warn"))
	assert.False(t, IsValidLevel("fatal"))
}

func TestNew_LevelVarCanBeChanged(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cfg := &Config{Level: "error"}
	log, cleanup, err := New(cfg)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, cfg.LevelVar)
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))

	cfg.LevelVar.Set(ParseLevel("debug"))
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestNew_FileOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	cfg := &Config{Level: "info", FileOutput: true, LogDir: dir, MaxSize: 1, MaxBackups: 1, MaxAge: 1}
	log, cleanup, err := New(cfg)
	require.NoError(t, err)

	log.Info("hello file", "backend", "local-1")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, DefaultLogOutputName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestPlainStyledLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	styled := NewPlainStyledLogger(base).WithRequestID("req-1")

	styled.InfoHealthStatus("Backend", "cloud-a", false, "failures", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Backend", record["msg"])
	assert.Equal(t, "cloud-a", record["backend"])
	assert.Equal(t, false, record["healthy"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.EqualValues(t, 3, record["failures"])
}

func TestThemedStyledLogger_StripsAnsiInJSON(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: fastReplaceAttr}))
	styled := NewThemedStyledLogger(base, theme.Default())

	styled.WarnFailover("Failing over", "cloud-a", "local-1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Contains(t, record["msg"], "Failing over")
	assert.NotContains(t, record["msg"], "\x1b")
}
