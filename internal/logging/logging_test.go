// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	slogotel "github.com/remychantenay/slog-otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	ctx := AppendCtx(context.Background(), slog.String("session_id", "s1"))
	ctx = AppendCtx(ctx, slog.String("academy_id", "academy-1"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 2)
	assert.Equal(t, "session_id", attrs[0].Key)
	assert.Equal(t, "academy-1", attrs[1].Value.String())
}

func TestAppendCtx_NilParent(t *testing.T) {
	//nolint:staticcheck // a nil parent is tolerated
	ctx := AppendCtx(nil, slog.String("subject", "itqan.session.sweep"))
	require.NotNil(t, ctx)

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}

func TestAppendCtx_DoesNotLeakIntoSiblings(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("session_id", "s1"))
	left := AppendCtx(parent, slog.String("participant_id", "42"))
	right := AppendCtx(parent, slog.String("participant_id", "43"))

	leftAttrs := left.Value(slogFields).([]slog.Attr)
	rightAttrs := right.Value(slogFields).([]slog.Attr)
	assert.Equal(t, "42", leftAttrs[1].Value.String())
	assert.Equal(t, "43", rightAttrs[1].Value.String())
	assert.Len(t, parent.Value(slogFields).([]slog.Attr), 1)
}

func TestNewContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := AppendCtx(context.Background(), slog.String("session_id", "s1"))
	logger.InfoContext(ctx, "session started", PriorityCritical())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session started", line["msg"])
	assert.Equal(t, "s1", line["session_id"])
	assert.Equal(t, "critical", line["priority"])
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithAcademy(context.Background(), "academy-1")
	ctx = WithSession(ctx, "s1", "QS-noor-s1-abcdefgh")
	logger.InfoContext(ctx, "session completed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "academy-1", line[AcademyIDKey])
	assert.Equal(t, "s1", line[SessionIDKey])
	assert.Equal(t, "QS-noor-s1-abcdefgh", line[RoomNameKey])
}

func TestWithSession_NoRoomYet(t *testing.T) {
	ctx := WithSession(context.Background(), "s1", "")

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 1)
	assert.Equal(t, SessionIDKey, attrs[0].Key)
}

func TestInitStructureLogConfig(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelDebug},
		{"verbose", slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_ADD_SOURCE", "true")

			handler := InitStructureLogConfig()
			_, ok := handler.(slogotel.OtelHandler)
			assert.True(t, ok, "records must carry trace correlation")

			ctx := context.Background()
			assert.True(t, slog.Default().Enabled(ctx, tt.want))
			if tt.want > slog.LevelDebug {
				assert.False(t, slog.Default().Enabled(ctx, tt.want-1))
			}
		})
	}
}
