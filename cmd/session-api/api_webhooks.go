// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/middleware"
	"github.com/itqan-platform/session-service/internal/service"
)

// LiveKitWebhook accepts a signed webhook from the LiveKit server and queues it.
func (s *SessionsAPI) LiveKitWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := middleware.GetRawBodyFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.NewValidationError("webhook body was not captured"))
		return
	}

	response, err := s.webhookService.ProcessWebhookEvent(r.Context(), service.LiveKitWebhookRequest{
		Authorization: r.Header.Get("Authorization"),
		RawBody:       body,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response)
}
