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

	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// LiveKitWebhookPath is the endpoint whose raw body is captured for signature checks.
const LiveKitWebhookPath = "/webhooks/livekit"

// maxWebhookBodyBytes bounds the body read for webhook endpoints.
const maxWebhookBodyBytes = 1 << 20

// webhookEnvelope is the part of a LiveKit webhook that identifies it in logs.
type webhookEnvelope struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Room  struct {
		Name string `json:"name"`
	} `json:"room"`
}

// WebhookBodyCaptureMiddleware captures the raw LiveKit webhook body and stores it in the
// request context for signature validation. The body hash is covered by the signature,
// so the bytes must be exactly what was received. The event, its id and the meeting room
// are stamped on the log context before the signature is checked.
func WebhookBodyCaptureMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == LiveKitWebhookPath {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
				if err != nil {
					http.Error(w, "Failed to read request body", http.StatusBadRequest)
					return
				}
				_ = r.Body.Close()

				// the next handler reads the same bytes
				r.Body = io.NopCloser(bytes.NewReader(body))
				ctx := context.WithValue(r.Context(), constants.WebhookBodyContextID, body)
				r = r.WithContext(webhookLogContext(ctx, body))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetRawBodyFromContext extracts the raw body from the context
func GetRawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(constants.WebhookBodyContextID).([]byte)
	return body, ok
}

// webhookLogContext returns ctx carrying the webhook event attributes found in body. A
// body that does not decode leaves ctx unchanged; the handler rejects it.
func webhookLogContext(ctx context.Context, body []byte) context.Context {
	var envelope webhookEnvelope
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return ctx
	}
	if envelope.Event != "" {
		ctx = logging.AppendCtx(ctx, slog.String(logging.WebhookEventKey, envelope.Event))
	}
	if envelope.ID != "" {
		ctx = logging.AppendCtx(ctx, slog.String(logging.WebhookIDKey, envelope.ID))
	}
	if envelope.Room.Name != "" {
		ctx = logging.WithRoom(ctx, envelope.Room.Name)
	}
	return ctx
}
