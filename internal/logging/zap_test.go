package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestZap(t *testing.T, level string) (*ZapLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewZapLogger(newZap(zapcore.AddSync(&buf), level)), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZapLogger_LevelsAndFields(t *testing.T) {
	log, buf := newTestZap(t, "debug")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", "x")
	log.Warn(ctx, "wrn")
	log.Error(ctx, "err", "d", 4)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "dbg", lines[0]["msg"])
	assert.EqualValues(t, 1, lines[0]["a"])
	assert.Equal(t, "info", lines[1]["level"])
	assert.Equal(t, "x", lines[1]["b"])
	assert.Equal(t, "warn", lines[2]["level"])
	assert.Equal(t, "error", lines[3]["level"])
	assert.Contains(t, lines[3], "stacktrace")
}

func TestZapLogger_RespectsLevel(t *testing.T) {
	log, buf := newTestZap(t, "warn")
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestZapLogger_WithAndRequestID(t *testing.T) {
	log, buf := newTestZap(t, "info")

	ctx := WithRequestID(context.Background(), "req-42")
	log.With("module", "http").Info(ctx, "hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http", lines[0]["module"])
	assert.Equal(t, "req-42", lines[0]["request_id"])
}

func TestBuildZap_WithRotatingFile(t *testing.T) {
	path := t.TempDir() + "/server.log"
	l, err := BuildZap(ZapOptions{Level: "info", File: path})
	require.NoError(t, err)
	require.NotNil(t, l)

	NewZapLogger(l).Info(context.Background(), "to file")
	_ = l.Sync()
}
