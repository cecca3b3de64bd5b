// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/utils"
)

// LiveKitWebhookService authenticates inbound provider webhooks and queues them on NATS.
type LiveKitWebhookService struct {
	messageSender    domain.WebhookEventSender
	webhookValidator domain.WebhookValidator

	now clock
}

// LiveKitWebhookRequest is a webhook as received over HTTP.
type LiveKitWebhookRequest struct {
	Authorization string
	RawBody       []byte
}

// WebhookResponse represents the webhook processing response
type WebhookResponse struct {
	Status  *string `json:"status,omitempty"`
	Message *string `json:"message,omitempty"`
}

// NewLiveKitWebhookService creates a new LiveKitWebhookService
func NewLiveKitWebhookService(
	messageSender domain.WebhookEventSender,
	webhookValidator domain.WebhookValidator,
) *LiveKitWebhookService {
	return &LiveKitWebhookService{
		messageSender:    messageSender,
		webhookValidator: webhookValidator,
		now:              utcNow,
	}
}

// ServiceReady checks if the service is ready to process requests
func (s *LiveKitWebhookService) ServiceReady() bool {
	return s.messageSender != nil && s.webhookValidator != nil
}

// ProcessWebhookEvent verifies the signature of a webhook and publishes the normalized
// event. Nothing is published for an invalid signature. Events the service does not
// consume are acknowledged and dropped.
func (s *LiveKitWebhookService) ProcessWebhookEvent(ctx context.Context, req LiveKitWebhookRequest) (*WebhookResponse, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if len(req.RawBody) == 0 {
		return nil, domain.NewValidationError("empty webhook body")
	}
	if req.Authorization == "" {
		return nil, domain.NewValidationError("missing webhook authorization", domain.ErrInvalidWebhookSignature)
	}

	if err := s.webhookValidator.ValidateSignature(req.RawBody, req.Authorization); err != nil {
		if errors.Is(err, domain.ErrInvalidWebhookSignature) {
			slog.WarnContext(ctx, "rejected webhook with invalid signature", logging.ErrKey, err)
			return nil, err
		}
		slog.ErrorContext(ctx, "webhook validation failed", logging.ErrKey, err)
		return nil, domain.NewInternalError("webhook validation not configured", err)
	}

	evt, err := models.ParseLiveKitWebhookEvent(req.RawBody)
	if err != nil {
		return nil, domain.NewValidationError("invalid webhook payload", err)
	}
	if !models.SupportedLiveKitEvent(evt.Event) {
		recordWebhookEvent(ctx, evt.Event, "ignored")
		slog.DebugContext(ctx, "ignoring unsupported webhook event", "event_type", evt.Event)
		return &WebhookResponse{
			Status:  utils.StringPtr("ignored"),
			Message: utils.StringPtr(fmt.Sprintf("Event %s is not consumed", evt.Event)),
		}, nil
	}

	msg := evt.ToMessage(s.now())
	subject := models.LiveKitWebhookSubjectPrefix + evt.Event
	if err := s.messageSender.PublishLiveKitWebhookEvent(ctx, subject, msg); err != nil {
		slog.ErrorContext(ctx, "failed to publish webhook event to NATS", logging.ErrKey, err,
			"event_type", evt.Event, "subject", subject)
		return nil, domain.NewInternalError("failed to process webhook event", err)
	}

	recordWebhookEvent(ctx, evt.Event, "queued")
	slog.InfoContext(ctx, "webhook event queued",
		"event_type", evt.Event, "event_id", evt.ID, "room_name", msg.RoomName)
	return &WebhookResponse{
		Status:  utils.StringPtr("success"),
		Message: utils.StringPtr(fmt.Sprintf("Event %s queued for processing", evt.Event)),
	}, nil
}

// WebhookEventService applies queued provider events to sessions, the attendance ledger
// and recordings.
type WebhookEventService struct {
	SessionRepository        domain.SessionRepository
	ProcessedEventRepository domain.ProcessedEventRepository
	SessionService           *SessionService
	AttendanceService        *AttendanceService
	MeetingService           *MeetingService
}

// NewWebhookEventService creates a new WebhookEventService.
func NewWebhookEventService(
	sessionRepository domain.SessionRepository,
	processedEventRepository domain.ProcessedEventRepository,
	sessionService *SessionService,
	attendanceService *AttendanceService,
	meetingService *MeetingService,
) *WebhookEventService {
	return &WebhookEventService{
		SessionRepository:        sessionRepository,
		ProcessedEventRepository: processedEventRepository,
		SessionService:           sessionService,
		AttendanceService:        attendanceService,
		MeetingService:           meetingService,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *WebhookEventService) ServiceReady() bool {
	return s.SessionRepository != nil &&
		s.SessionService != nil &&
		s.AttendanceService != nil &&
		s.MeetingService != nil
}

// ApplyEvent applies one normalized provider event. Events already marked processed and
// events about rooms no session owns are dropped without error. The event is marked
// processed only after it was fully applied, so a failed event is retried on redelivery
// and the ledger's own event ids keep that replay from double counting.
func (s *WebhookEventService) ApplyEvent(ctx context.Context, msg models.LiveKitWebhookEventMessage) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.ErrServiceUnavailable
	}
	ctx = logging.AppendCtx(ctx, slog.String("event_type", msg.EventType))
	ctx = logging.AppendCtx(ctx, slog.String("event_id", msg.EventID))

	if msg.EventID != "" && s.ProcessedEventRepository != nil {
		processed, err := s.ProcessedEventRepository.IsProcessed(ctx, msg.EventID)
		if err != nil {
			slog.WarnContext(ctx, "failed to check processed event marker", logging.ErrKey, err)
		} else if processed {
			recordWebhookEvent(ctx, msg.EventType, "duplicate")
			slog.DebugContext(ctx, "event already processed")
			return nil
		}
	}

	var err error
	switch msg.EventType {
	case models.LiveKitEventEgressEnded:
		err = s.applyEgressEnded(ctx, msg)
	case models.LiveKitEventRoomStarted,
		models.LiveKitEventRoomFinished,
		models.LiveKitEventParticipantJoined,
		models.LiveKitEventParticipantLeft:
		err = s.applyRoomEvent(ctx, msg)
	default:
		recordWebhookEvent(ctx, msg.EventType, "ignored")
		slog.DebugContext(ctx, "ignoring unsupported event")
		return nil
	}
	if err != nil {
		recordWebhookEvent(ctx, msg.EventType, "failed")
		return err
	}

	recordWebhookEvent(ctx, msg.EventType, "applied")
	if msg.EventID != "" && s.ProcessedEventRepository != nil {
		if err := s.ProcessedEventRepository.MarkProcessed(ctx, msg.EventID); err != nil {
			slog.WarnContext(ctx, "failed to mark event processed", logging.ErrKey, err)
		}
	}
	return nil
}

func (s *WebhookEventService) applyRoomEvent(ctx context.Context, msg models.LiveKitWebhookEventMessage) error {
	if msg.RoomName == "" {
		slog.WarnContext(ctx, "dropping room event without room name")
		return nil
	}
	ctx = logging.WithRoom(ctx, msg.RoomName)

	session, err := s.SessionRepository.GetByRoomName(ctx, msg.RoomName)
	if err != nil {
		if domain.IsNotFound(err) {
			slog.WarnContext(ctx, "dropping event for unknown room")
			return nil
		}
		return err
	}
	ctx = logging.WithSession(ctx, session.ID, "")

	switch msg.EventType {
	case models.LiveKitEventRoomStarted:
		return s.roomStarted(ctx, session)
	case models.LiveKitEventRoomFinished:
		return s.roomFinished(ctx, session, msg)
	default:
		return s.presence(ctx, session, msg)
	}
}

// roomStarted starts a pre-start session when the room opens inside its active window.
func (s *WebhookEventService) roomStarted(ctx context.Context, session *models.Session) error {
	if !session.Status.IsPreStart() {
		return nil
	}
	_, err := s.SessionService.Start(ctx, session.AcademyID, session.ID)
	if err != nil && domain.GetErrorType(err) == domain.ErrorTypeIllegalTransition {
		slog.InfoContext(ctx, "room started outside the session window", logging.ErrKey, err)
		return nil
	}
	return err
}

// roomFinished closes every open interval at the event time and stops the recording.
func (s *WebhookEventService) roomFinished(ctx context.Context, session *models.Session, msg models.LiveKitWebhookEventMessage) error {
	closed, err := s.AttendanceService.CloseAll(ctx, session.ID, eventKey(msg), msg.Timestamp)
	if err != nil {
		return err
	}
	if closed > 0 {
		slog.InfoContext(ctx, "closed open attendance intervals on room finish", "closed", closed)
	}
	s.MeetingService.stopActiveRecording(ctx, session)
	return nil
}

func (s *WebhookEventService) presence(ctx context.Context, session *models.Session, msg models.LiveKitWebhookEventMessage) error {
	if session.Status == models.SessionStatusCancelled {
		slog.InfoContext(ctx, "dropping presence event for cancelled session")
		return nil
	}
	if msg.ParticipantIdentity == "" {
		slog.WarnContext(ctx, "dropping presence event without participant identity")
		return nil
	}

	eventType := models.PresenceJoin
	if msg.EventType == models.LiveKitEventParticipantLeft {
		eventType = models.PresenceLeave
	}
	md := models.ParseParticipantMetadata(msg.ParticipantMetadata)
	_, _, err := s.AttendanceService.RecordPresence(ctx, session.ID, PresenceInput{
		EventID:     eventKey(msg),
		Identity:    msg.ParticipantIdentity,
		DisplayName: msg.ParticipantName,
		Role:        md.Role,
		Type:        eventType,
		At:          msg.Timestamp,
	})
	return err
}

func (s *WebhookEventService) applyEgressEnded(ctx context.Context, msg models.LiveKitWebhookEventMessage) error {
	if msg.Egress == nil || msg.Egress.EgressID == "" {
		slog.WarnContext(ctx, "dropping egress event without egress info")
		return nil
	}
	return s.MeetingService.HandleEgressEnded(ctx, msg.Egress)
}

// eventKey is the ledger dedup key of an event. Providers normally send an id; without
// one the event is keyed by what it describes.
func eventKey(msg models.LiveKitWebhookEventMessage) string {
	if msg.EventID != "" {
		return msg.EventID
	}
	return fmt.Sprintf("%s/%s/%s/%d", msg.EventType, msg.RoomName, msg.ParticipantIdentity, msg.Timestamp.UnixNano())
}
