// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/livekit/protocol/auth"
	lkwebhook "github.com/livekit/protocol/webhook"
)

// LiveKitWebhookValidator handles validation of LiveKit webhook signatures. LiveKit
// signs every webhook with an access token in the Authorization header whose sha256
// claim is the base64 encoded digest of the body.
type LiveKitWebhookValidator struct {
	APIKey    string
	APISecret string
	keys      auth.KeyProvider
}

var _ domain.WebhookValidator = (*LiveKitWebhookValidator)(nil)

// NewLiveKitWebhookValidator creates a new LiveKit webhook validator
func NewLiveKitWebhookValidator(apiKey, apiSecret string) *LiveKitWebhookValidator {
	return &LiveKitWebhookValidator{
		APIKey:    apiKey,
		APISecret: apiSecret,
		keys:      auth.NewSimpleKeyProvider(apiKey, apiSecret),
	}
}

func invalid(reason string, err ...error) error {
	return domain.NewValidationError(reason, append([]error{domain.ErrInvalidWebhookSignature}, err...)...)
}

// ValidateSignature validates the LiveKit webhook signature
func (v *LiveKitWebhookValidator) ValidateSignature(body []byte, authorization string) error {
	if v.APIKey == "" || v.APISecret == "" {
		return fmt.Errorf("webhook credentials not configured")
	}

	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authorization), "Bearer "))
	if token == "" {
		return invalid("missing webhook authorization")
	}

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to wrap webhook body: %w", err)
	}
	req.Header.Set("Authorization", token)

	if _, err := lkwebhook.Receive(req, v.keys); err != nil {
		return invalid("webhook signature rejected", err)
	}
	return nil
}
