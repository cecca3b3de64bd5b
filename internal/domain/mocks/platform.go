// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/itqan-platform/session-service/internal/domain"
)

// MockMeetingProvider implements MeetingProvider for testing
type MockMeetingProvider struct {
	mock.Mock
}

func (m *MockMeetingProvider) CreateRoom(ctx context.Context, name string, opts domain.RoomOptions) (string, error) {
	args := m.Called(ctx, name, opts)
	return args.String(0), args.Error(1)
}

func (m *MockMeetingProvider) DeleteRoom(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockMeetingProvider) StartRoomRecording(ctx context.Context, roomName, filepath string) (string, error) {
	args := m.Called(ctx, roomName, filepath)
	return args.String(0), args.Error(1)
}

func (m *MockMeetingProvider) StopRecording(ctx context.Context, egressID string) error {
	args := m.Called(ctx, egressID)
	return args.Error(0)
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) IssueToken(req domain.TokenRequest) (*domain.AccessToken, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessToken), args.Error(1)
}

// MockWebhookValidator implements WebhookValidator for testing
type MockWebhookValidator struct {
	mock.Mock
}

func (m *MockWebhookValidator) ValidateSignature(body []byte, authorization string) error {
	args := m.Called(body, authorization)
	return args.Error(0)
}
