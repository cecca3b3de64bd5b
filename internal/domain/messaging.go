// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// SessionEventSender publishes session lifecycle events.
type SessionEventSender interface {
	SendSessionEvent(ctx context.Context, action models.SessionEventAction, session models.Session) error
}

// WebhookEventSender handles webhook event publishing.
type WebhookEventSender interface {
	PublishLiveKitWebhookEvent(ctx context.Context, subject string, message models.LiveKitWebhookEventMessage) error
}

// MessageBuilder is the main interface that composes all messaging capabilities.
type MessageBuilder interface {
	SessionEventSender
	WebhookEventSender
}
