// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// captureLogs routes the default logger through the context handler into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestRequestLoggerMiddleware(t *testing.T) {
	buf := captureLogs(t)

	handler := RequestIDMiddleware()(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})))

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/start", nil)
	req.Header.Set(constants.AcademyIDHeader, "academy-1")
	req.Header.Set(constants.RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "HTTP request", lines[0]["msg"])
	assert.Equal(t, "academy-1", lines[0]["academy_id"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "/sessions/s1/start", lines[0]["path"])
	assert.Equal(t, "HTTP response", lines[1]["msg"])
	assert.Equal(t, float64(http.StatusConflict), lines[1]["status"])
}

func TestRequestLoggerMiddleware_DefaultStatus(t *testing.T) {
	buf := captureLogs(t)

	handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, float64(http.StatusOK), lines[1]["status"])
}

func TestRequestLoggerMiddleware_SkipsHealthChecks(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			buf := captureLogs(t)
			handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
			assert.Empty(t, buf.String())
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("propagates the caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
		req.Header.Set(constants.RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(constants.RequestIDHeader))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(constants.RequestIDHeader))
	})
}
