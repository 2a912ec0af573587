package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextValues(t *testing.T) {
	ctx := WithPhase(WithBuildID(context.Background(), "build-123"), "parse")
	lc := GetContext(ctx)
	assert.Equal(t, "build-123", lc.BuildID)
	assert.Equal(t, "parse", lc.Phase)

	ctx = WithPhase(ctx, "validate")
	assert.Equal(t, "validate", GetContext(ctx).Phase)
	assert.Equal(t, "build-123", GetContext(ctx).BuildID)
	assert.Equal(t, LogContext{}, GetContext(context.Background()))
}

func TestLogFunctionsAttachContext(t *testing.T) {
	buf := captureDefault(t)
	ctx := WithPhase(WithBuildID(context.Background(), "b-1"), "aggregate")

	tests := []struct {
		log   func(context.Context, string, ...slog.Attr)
		level string
	}{
		{InfoContext, "INFO"},
		{WarnContext, "WARN"},
		{ErrorContext, "ERROR"},
		{DebugContext, "DEBUG"},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.log(ctx, "hello", slog.Int("count", 2))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, tt.level, rec["level"])
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "b-1", rec["build_id"])
		assert.Equal(t, "aggregate", rec["phase"])
		assert.EqualValues(t, 2, rec["count"])
	}
}
