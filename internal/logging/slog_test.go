package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		rec := map[string]any{}
		require.NoError(t, dec.Decode(&rec))
		out = append(out, rec)
	}
	return out
}

func TestJSONLogger_LevelsAndAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "debug")
	ctx := context.Background()

	log.Debug(ctx, "pull page", "count", 3)
	log.Info(ctx, "flush finished", "sent", 2)
	log.Warn(ctx, "server unreachable")
	log.Error(ctx, "apply failed", "id", "r1")

	recs := decodeRecords(t, &buf)
	require.Len(t, recs, 4)

	want := []struct{ level, msg string }{
		{"DEBUG", "pull page"},
		{"INFO", "flush finished"},
		{"WARN", "server unreachable"},
		{"ERROR", "apply failed"},
	}
	for i, w := range want {
		assert.Equal(t, w.level, recs[i]["level"])
		assert.Equal(t, w.msg, recs[i]["msg"])
	}
	assert.EqualValues(t, 3, recs[0]["count"])
	assert.Equal(t, "r1", recs[3]["id"])
}

func TestWith_AddsAttributesToChild(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, "info")
	child := root.With("module", "sync_engine")

	child.Info(context.Background(), "tick")
	root.Info(context.Background(), "plain")

	recs := decodeRecords(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "sync_engine", recs[0]["module"])
	assert.NotContains(t, recs[1], "module")
}

func TestTextLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, "warn")

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopLogger().With("a", 1).Error(context.Background(), "dropped")
	})
}
