// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/constants"
	"github.com/vmihailenco/msgpack/v5"
)

// INatsConn is a NATS connection interface needed for the [MessageBuilder].
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

var _ domain.MessageBuilder = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// publish sends the message to the NATS server.
func (m *MessageBuilder) publish(ctx context.Context, subject string, data []byte) error {
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// eventHeaders carries the caller identity of the request that caused the event.
func eventHeaders(ctx context.Context) map[string]string {
	headers := make(map[string]string)
	if authorization, ok := ctx.Value(constants.AuthorizationContextID).(string); ok {
		headers[constants.AuthorizationHeader] = authorization
	} else {
		// system-generated events (webhooks, sweep) have no user auth context
		headers[constants.AuthorizationHeader] = "Bearer session-service"
	}
	if principal, ok := ctx.Value(constants.PrincipalContextID).(string); ok {
		headers[constants.XOnBehalfOfHeader] = principal
	}
	if requestID, ok := ctx.Value(constants.RequestIDContextID).(string); ok {
		headers[constants.RequestIDHeader] = requestID
	}
	return headers
}

// toPayload flattens v into the generic map consumers decode.
func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err != nil {
		return nil, err
	}

	var payload map[string]any
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &payload,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(jsonData); err != nil {
		return nil, err
	}
	return payload, nil
}

// SendSessionEvent publishes a session lifecycle event on the subject of action.
func (m *MessageBuilder) SendSessionEvent(ctx context.Context, action models.SessionEventAction, session models.Session) error {
	subject := action.Subject()
	if subject == "" {
		return domain.NewValidationError("unknown session event action " + string(action))
	}

	payload, err := toPayload(session)
	if err != nil {
		slog.ErrorContext(ctx, "error converting session into event payload", logging.ErrKey, err, "subject", subject)
		return err
	}

	message := models.SessionEventMessage{
		Action:  action,
		Headers: eventHeaders(ctx),
		Data:    payload,
		Tags:    session.Tags(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message into JSON", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "constructed session event",
		"subject", subject,
		"action", action,
		"session_id", session.ID,
	)

	return m.publish(ctx, subject, messageBytes)
}

// PublishLiveKitWebhookEvent publishes a LiveKit webhook event to NATS for async processing.
func (m *MessageBuilder) PublishLiveKitWebhookEvent(ctx context.Context, subject string, message models.LiveKitWebhookEventMessage) error {
	messageBytes, err := msgpack.Marshal(&message)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding LiveKit webhook event", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "publishing LiveKit webhook event to NATS",
		"subject", subject,
		"event_type", message.EventType,
		"event_id", message.EventID,
	)

	return m.publish(ctx, subject, messageBytes)
}

// DecodeLiveKitWebhookEvent decodes a message published by [MessageBuilder.PublishLiveKitWebhookEvent].
func DecodeLiveKitWebhookEvent(data []byte) (*models.LiveKitWebhookEventMessage, error) {
	var message models.LiveKitWebhookEventMessage
	if err := msgpack.Unmarshal(data, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
