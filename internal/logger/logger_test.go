package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	InitWithWriter(Config{Level: level, Format: "json"}, &buf)
	t.Cleanup(func() { InitWithWriter(Config{Level: "info"}, os.Stdout) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestInitLevelAndComponent(t *testing.T) {
	buf := captureJSON(t, "warn")

	hidden := Component("segmenter")
	hidden.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	shown := Component("segmenter")
	shown.Warn().Msg("shown")
	entry := lastLine(t, buf)
	assert.Equal(t, "segmenter", entry["component"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	captureJSON(t, "chatty")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestContextFields(t *testing.T) {
	buf := captureJSON(t, "debug")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRecordID(ctx, "rec-9")
	FromContext(ctx).Info().Msg("parsed")

	entry := lastLine(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "rec-9", entry["record_id"])
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	buf := captureJSON(t, "info")
	FromContext(context.Background()).Info().Msg("global")
	assert.Equal(t, "global", lastLine(t, buf)["message"])
}
