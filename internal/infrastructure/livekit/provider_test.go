// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package livekit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/livekit/api/mocks"
	"github.com/twitchtv/twirp"
)

var testConfig = Config{
	URL:       "wss://livekit.example.com",
	APIKey:    "APIkey123",
	APISecret: "secret-with-enough-entropy-for-hs256",
}

func TestProvider_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		client := &mocks.MockClient{}
		p := NewProviderWithClient(testConfig, client)
		client.On("CreateRoom", ctx, mock.MatchedBy(func(r *livekit.CreateRoomRequest) bool {
			return r.Name == "QS-noor-s1-abcdefgh" && r.EmptyTimeout == 300 && r.MaxParticipants == 20
		})).Return(&livekit.Room{Sid: "RM_1", Name: "QS-noor-s1-abcdefgh"}, nil)

		sid, err := p.CreateRoom(ctx, "QS-noor-s1-abcdefgh", domain.RoomOptions{
			EmptyTimeout: 5 * time.Minute, MaxParticipants: 20,
		})
		require.NoError(t, err)
		assert.Equal(t, "RM_1", sid)
		client.AssertExpectations(t)
	})

	t.Run("provider failure is unavailable", func(t *testing.T) {
		client := &mocks.MockClient{}
		p := NewProviderWithClient(testConfig, client)
		client.On("CreateRoom", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := p.CreateRoom(ctx, "r1", domain.RoomOptions{})
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})
}

func TestProvider_IdempotentTeardown(t *testing.T) {
	ctx := context.Background()
	client := &mocks.MockClient{}
	p := NewProviderWithClient(testConfig, client)

	room := func(name string) any {
		return mock.MatchedBy(func(r *livekit.DeleteRoomRequest) bool { return r.Room == name })
	}
	egress := func(id string) any {
		return mock.MatchedBy(func(r *livekit.StopEgressRequest) bool { return r.EgressId == id })
	}
	client.On("DeleteRoom", ctx, room("gone")).Return(twirp.NewError(twirp.NotFound, "room not found"))
	client.On("DeleteRoom", ctx, room("down")).Return(twirp.NewError(twirp.Unavailable, "try later"))
	client.On("StopEgress", ctx, egress("EG_done")).Return(nil, twirp.NewError(twirp.FailedPrecondition, "egress already ended"))
	client.On("StopEgress", ctx, egress("EG_down")).Return(nil, errors.New("connection reset"))

	assert.NoError(t, p.DeleteRoom(ctx, "gone"))
	assert.ErrorIs(t, p.DeleteRoom(ctx, "down"), domain.ErrProviderUnavailable)
	assert.NoError(t, p.StopRecording(ctx, "EG_done"))
	assert.ErrorIs(t, p.StopRecording(ctx, "EG_down"), domain.ErrProviderUnavailable)
}

func TestProvider_StartRoomRecording(t *testing.T) {
	ctx := context.Background()
	client := &mocks.MockClient{}
	p := NewProviderWithClient(testConfig, client)

	client.On("StartRoomCompositeEgress", ctx, mock.MatchedBy(func(r *livekit.RoomCompositeEgressRequest) bool {
		return r.RoomName == "r1" && r.Layout == "grid" && len(r.FileOutputs) == 1 &&
			r.FileOutputs[0].FileType == livekit.EncodedFileType_MP4 &&
			r.FileOutputs[0].Filepath == "/recordings/r1.mp4"
	})).Return(&livekit.EgressInfo{EgressId: "EG_1"}, nil).Once()
	client.On("StartRoomCompositeEgress", ctx, mock.Anything).Return(&livekit.EgressInfo{}, nil).Once()

	egressID, err := p.StartRoomRecording(ctx, "r1", "/recordings/r1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "EG_1", egressID)

	_, err = p.StartRoomRecording(ctx, "r1", "/recordings/r1.mp4")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_IssueToken(t *testing.T) {
	p := NewProviderWithClient(testConfig, &mocks.MockClient{})
	now := time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	tests := []struct {
		role       models.ParticipantRole
		roomAdmin  bool
		canPublish bool
		hidden     bool
	}{
		{models.ParticipantRoleTeacher, true, true, false},
		{models.ParticipantRoleAdmin, true, true, false},
		{models.ParticipantRoleStudent, false, true, false},
		{models.ParticipantRoleSupervisor, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			tok, err := p.IssueToken(domain.TokenRequest{
				RoomName: "r1",
				Identity: "42_Ahmed",
				Role:     tt.role,
				Metadata: `{"role":"` + string(tt.role) + `"}`,
			})
			require.NoError(t, err)
			assert.Equal(t, now.Add(DefaultTokenTTL), tok.ExpiresAt)
			assert.Equal(t, testConfig.URL, tok.ServerURL)

			verifier, err := auth.ParseAPIToken(tok.Token)
			require.NoError(t, err)
			assert.Equal(t, testConfig.APIKey, verifier.APIKey())
			assert.Equal(t, "42_Ahmed", verifier.Identity())

			claims := tokenClaims(t, tok.Token)
			assert.Equal(t, `{"role":"`+string(tt.role)+`"}`, claims["metadata"])
			video, ok := claims["video"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, video["roomJoin"])
			assert.Equal(t, "r1", video["room"])
			assert.Equal(t, tt.canPublish, video["canPublish"])
			assert.Equal(t, tt.roomAdmin, video["roomAdmin"] == true)
			assert.Equal(t, tt.hidden, video["hidden"] == true)
		})
	}

	t.Run("requires room and identity", func(t *testing.T) {
		_, err := p.IssueToken(domain.TokenRequest{Identity: "42"})
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})
}

// tokenClaims decodes the payload segment of a signed token.
func tokenClaims(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	return claims
}
