// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/mock"

	"github.com/itqan-platform/session-service/internal/infrastructure/livekit/api"
)

// MockClient implements api.ClientAPI for testing
type MockClient struct {
	mock.Mock
}

var _ api.ClientAPI = (*MockClient)(nil)

func (m *MockClient) CreateRoom(ctx context.Context, request *livekit.CreateRoomRequest) (*livekit.Room, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*livekit.Room), args.Error(1)
}

func (m *MockClient) DeleteRoom(ctx context.Context, request *livekit.DeleteRoomRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockClient) StartRoomCompositeEgress(ctx context.Context, request *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*livekit.EgressInfo), args.Error(1)
}

func (m *MockClient) StopEgress(ctx context.Context, request *livekit.StopEgressRequest) (*livekit.EgressInfo, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*livekit.EgressInfo), args.Error(1)
}
