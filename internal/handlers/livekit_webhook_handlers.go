// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"log/slog"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/messaging"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/internal/service"
)

// LiveKitWebhookHandler applies provider events queued by the HTTP webhook endpoint.
type LiveKitWebhookHandler struct {
	eventService *service.WebhookEventService
}

func NewLiveKitWebhookHandler(eventService *service.WebhookEventService) *LiveKitWebhookHandler {
	return &LiveKitWebhookHandler{
		eventService: eventService,
	}
}

func (s *LiveKitWebhookHandler) HandlerReady() bool {
	return s.eventService != nil && s.eventService.ServiceReady()
}

// HandleMessage implements [domain.MessageHandler] interface
func (s *LiveKitWebhookHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) error{
		models.LiveKitWebhookRoomStartedSubject:       s.HandleLiveKitEvent,
		models.LiveKitWebhookRoomFinishedSubject:      s.HandleLiveKitEvent,
		models.LiveKitWebhookParticipantJoinedSubject: s.HandleLiveKitEvent,
		models.LiveKitWebhookParticipantLeftSubject:   s.HandleLiveKitEvent,
		models.LiveKitWebhookEgressEndedSubject:       s.HandleLiveKitEvent,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		return
	}

	// webhook events are fire-and-forget; failures are only logged
	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "handled NATS message (no reply expected)")
}

// HandleLiveKitEvent decodes a normalized provider event and applies it.
func (s *LiveKitWebhookHandler) HandleLiveKitEvent(ctx context.Context, msg domain.Message) error {
	event, err := messaging.DecodeLiveKitWebhookEvent(msg.Data())
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode LiveKit webhook event", logging.ErrKey, err)
		return err
	}

	ctx = logging.AppendCtx(ctx, slog.String("event_type", event.EventType))
	if err := s.eventService.ApplyEvent(ctx, *event); err != nil {
		slog.ErrorContext(ctx, "failed to apply LiveKit webhook event", logging.ErrKey, err)
		return err
	}

	slog.InfoContext(ctx, "successfully processed LiveKit webhook event", "room_name", event.RoomName)
	return nil
}
