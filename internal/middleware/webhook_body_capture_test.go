// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
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

func TestWebhookBodyCaptureMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		body          string
		expectCapture bool
	}{
		{
			name:          "captures livekit webhook request body",
			path:          "/webhooks/livekit",
			body:          `{"event": "participant_joined", "id": "EV_1"}`,
			expectCapture: true,
		},
		{
			name:          "does not capture other webhook paths",
			path:          "/webhooks/livekit/egress",
			body:          `{"event": "egress_ended"}`,
			expectCapture: false,
		},
		{
			name:          "does not capture non-webhook request body",
			path:          "/sessions",
			body:          `{"kind": "quran"}`,
			expectCapture: false,
		},
		{
			name:          "handles empty livekit webhook body",
			path:          "/webhooks/livekit",
			body:          "",
			expectCapture: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedBody []byte
			var bodyFromContext []byte
			var contextHasBody bool

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				bodyFromContext, contextHasBody = GetRawBodyFromContext(r.Context())

				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				capturedBody = body

				w.WriteHeader(http.StatusOK)
			})

			wrappedHandler := WebhookBodyCaptureMiddleware()(handler)

			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)

			// the handler still reads the full body
			assert.Equal(t, tt.body, string(capturedBody))

			if tt.expectCapture {
				assert.True(t, contextHasBody, "expected body in context for the livekit webhook path")
				assert.Equal(t, tt.body, string(bodyFromContext), "Body in context should match expected")
			} else {
				assert.False(t, contextHasBody, "expected no body in context for other paths")
			}
		})
	}
}

func TestGetRawBodyFromContext(t *testing.T) {
	tests := []struct {
		name          string
		setupContext  func() context.Context
		expectedBody  []byte
		expectedFound bool
	}{
		{
			name: "returns body when present in context",
			setupContext: func() context.Context {
				body := []byte(`{"event": "room_started"}`)
				return context.WithValue(context.Background(), constants.WebhookBodyContextID, body)
			},
			expectedBody:  []byte(`{"event": "room_started"}`),
			expectedFound: true,
		},
		{
			name: "returns false when body not in context",
			setupContext: func() context.Context {
				return context.Background()
			},
			expectedBody:  nil,
			expectedFound: false,
		},
		{
			name: "returns false when wrong type in context",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), constants.WebhookBodyContextID, "wrong type")
			},
			expectedBody:  nil,
			expectedFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupContext()
			body, found := GetRawBodyFromContext(ctx)

			assert.Equal(t, tt.expectedFound, found)
			assert.Equal(t, tt.expectedBody, body)
		})
	}
}

func TestWebhookBodyCaptureMiddleware_Oversized(t *testing.T) {
	called := false
	handler := WebhookBodyCaptureMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, LiveKitWebhookPath, strings.NewReader(strings.Repeat("a", maxWebhookBodyBytes+1)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestWebhookBodyCaptureMiddleware_StampsEventContext(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		attrs map[string]any
	}{
		{
			name: "participant event",
			body: `{"event":"participant_joined","id":"EV_1","room":{"name":"QS-noor-s1-abcdefgh"},"participant":{"identity":"42_Ahmed"}}`,
			attrs: map[string]any{
				logging.WebhookEventKey: "participant_joined",
				logging.WebhookIDKey:    "EV_1",
				logging.RoomNameKey:     "QS-noor-s1-abcdefgh",
			},
		},
		{
			name: "event without room",
			body: `{"event":"egress_ended","id":"EV_2"}`,
			attrs: map[string]any{
				logging.WebhookEventKey: "egress_ended",
				logging.WebhookIDKey:    "EV_2",
			},
		},
		{
			name:  "body that is not json",
			body:  "not json",
			attrs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

			handler := WebhookBodyCaptureMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.InfoContext(r.Context(), "webhook received")
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, LiveKitWebhookPath, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			for key, want := range tt.attrs {
				assert.Equal(t, want, line[key], key)
			}
			for _, key := range []string{logging.WebhookEventKey, logging.WebhookIDKey, logging.RoomNameKey} {
				if _, expected := tt.attrs[key]; !expected {
					assert.NotContains(t, line, key)
				}
			}
		})
	}
}
