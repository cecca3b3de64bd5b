// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// MockMessageBuilder implements MessageBuilder for testing
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) SendSessionEvent(ctx context.Context, action models.SessionEventAction, session models.Session) error {
	args := m.Called(ctx, action, session)
	return args.Error(0)
}

func (m *MockMessageBuilder) PublishLiveKitWebhookEvent(ctx context.Context, subject string, message models.LiveKitWebhookEventMessage) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}
