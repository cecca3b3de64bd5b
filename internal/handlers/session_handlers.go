// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/internal/service"
)

// SessionHandler serves request/reply session subjects.
type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (s *SessionHandler) HandlerReady() bool {
	return s.sessionService != nil && s.sessionService.ServiceReady()
}

// SessionGetRequest is the payload of a session get request.
type SessionGetRequest struct {
	AcademyID string `json:"academy_id"`
	SessionID string `json:"session_id"`
}

// HandleMessage implements [domain.MessageHandler] interface
func (s *SessionHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	var response []byte
	var err error

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.SessionSweepSubject: s.HandleSweep,
		models.SessionGetSubject:   s.HandleSessionGet,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		if msg.HasReply() {
			err = msg.Respond(nil)
			if err != nil {
				slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
			}
		}
		return
	}

	response, err = handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message",
			logging.ErrKey, err,
		)
		if msg.HasReply() {
			err = msg.Respond(nil)
			if err != nil {
				slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
			}
		}
		return
	}

	if msg.HasReply() {
		err = msg.Respond(response)
		if err != nil {
			slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
			return
		}
		slog.DebugContext(ctx, "responded to NATS message", "response", string(response))
	} else {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
	}
}

// HandleSweep runs one sweep pass and replies with its [models.SweepResult].
func (s *SessionHandler) HandleSweep(ctx context.Context, _ domain.Message) ([]byte, error) {
	result, err := s.sessionService.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// HandleSessionGet replies with the session named by a [SessionGetRequest].
func (s *SessionHandler) HandleSessionGet(ctx context.Context, msg domain.Message) ([]byte, error) {
	var req SessionGetRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("invalid session get request", err)
	}
	if req.AcademyID == "" || req.SessionID == "" {
		return nil, domain.NewValidationError("academy_id and session_id are required")
	}

	ctx = logging.WithSession(ctx, req.SessionID, "")
	session, err := s.sessionService.Get(ctx, req.AcademyID, req.SessionID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(session)
}
