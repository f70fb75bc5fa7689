package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCustomHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, Options{Level: slog.LevelDebug}))

	l.With(slog.String("run_id", "abc")).Info("Refresh finished",
		slog.String("type", "ingest"),
		slog.Int("updated", 12),
	)

	line := buf.String()
	assert.Contains(t, line, "[Market]")
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "[ING]")
	assert.Contains(t, line, "Refresh finished")
	assert.Contains(t, line, "run_id=abc")
	assert.Contains(t, line, "updated=12")
	assert.NotContains(t, line, "type=")
	assert.NotContains(t, line, "\033[")
}

func TestCustomHandler_LevelAndSkip(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, Options{Level: slog.LevelWarn}))

	l.Info("hidden")
	l.Warn("sending heartbeat")
	assert.Empty(t, buf.String())

	l.Error("Fetch failed", slog.String("type", "error"), slog.Any("error", errors.New("boom")), slog.Int64("item_id", 5))
	assert.Contains(t, buf.String(), "[ERROR] [ERR] Fetch failed: boom item_id=5")
}

func TestLogCommand(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, Options{}))

	LogCommand(l, "profit", 15*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "[CMD] Command executed")
	assert.Contains(t, buf.String(), "took=15ms")
}

func TestLogQuery(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, Options{Level: slog.LevelDebug}))

	LogQuery(l, "DELETE FROM items", nil, time.Millisecond, nil)
	assert.Contains(t, buf.String(), "[DEBUG] [DB] Statement executed")

	buf.Reset()
	LogQuery(l, "DELETE FROM items", []any{1}, time.Millisecond, errors.New("locked"))
	assert.Contains(t, buf.String(), "[ERROR] [DB] Statement failed: locked")
}
