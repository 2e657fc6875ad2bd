package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextAttachesIDs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithJoinID(ctx, "join-1")
	FromContext(ctx).Info("join completed", "matches", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "join-1", entry["join_id"])
	assert.Equal(t, float64(3), entry["matches"])
	assert.Equal(t, "join-1", JoinID(ctx))
}

func TestLevelFilters(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "warn", "text")
	WithComponent("test").Info("hidden")
	assert.Empty(t, buf.String())
	WithComponent("test").Warn("shown")
	assert.Contains(t, buf.String(), "component=test")
}
