// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package livekit adapts the LiveKit server API to the meeting provider boundary.
package livekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/livekit/api"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
)

// DefaultTokenTTL is the validity of participant access tokens.
const DefaultTokenTTL = 3 * time.Hour

// Config holds the LiveKit credentials and endpoints.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Provider implements the meeting provider and token issuer on top of LiveKit.
type Provider struct {
	client    api.ClientAPI
	serverURL string
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// Ensure Provider implements the platform boundaries
var (
	_ domain.MeetingProvider = (*Provider)(nil)
	_ domain.TokenIssuer     = (*Provider)(nil)
)

// NewProvider creates a provider backed by the LiveKit server API.
func NewProvider(config Config) *Provider {
	return NewProviderWithClient(config, api.NewClient(api.Config{
		URL:       config.URL,
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Timeout:   config.Timeout,
	}))
}

// NewProviderWithClient creates a provider with an explicit API client.
func NewProviderWithClient(config Config, client api.ClientAPI) *Provider {
	return &Provider{
		client:    client,
		serverURL: config.URL,
		apiKey:    config.APIKey,
		apiSecret: config.APISecret,
		now:       time.Now,
	}
}

func unavailable(op string, err error) error {
	return domain.NewUnavailableError(fmt.Sprintf("meeting provider %s failed", op), domain.ErrProviderUnavailable, err)
}

// CreateRoom creates the room, returning its sid.
func (p *Provider) CreateRoom(ctx context.Context, name string, opts domain.RoomOptions) (string, error) {
	room, err := p.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    uint32(opts.EmptyTimeout / time.Second),
		MaxParticipants: uint32(max(opts.MaxParticipants, 0)),
		Metadata:        opts.Metadata,
	})
	if err != nil {
		return "", unavailable("create room", err)
	}
	slog.InfoContext(ctx, "livekit room created", "room_name", name, "room_sid", room.GetSid())
	return room.GetSid(), nil
}

// DeleteRoom deletes the room. A room that no longer exists is not an error.
func (p *Provider) DeleteRoom(ctx context.Context, name string) error {
	if err := p.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name}); err != nil {
		if api.IsNotFound(err) {
			slog.DebugContext(ctx, "livekit room already gone", "room_name", name)
			return nil
		}
		return unavailable("delete room", err)
	}
	return nil
}

// StartRoomRecording starts an MP4 room composite egress.
func (p *Provider) StartRoomRecording(ctx context.Context, roomName, filepath string) (string, error) {
	info, err := p.client.StartRoomCompositeEgress(ctx, &livekit.RoomCompositeEgressRequest{
		RoomName: roomName,
		Layout:   "grid",
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_MP4,
			Filepath: filepath,
		}},
	})
	if err != nil {
		return "", unavailable("start recording", err)
	}
	if info.GetEgressId() == "" {
		return "", unavailable("start recording", fmt.Errorf("no egress id returned for room %s", roomName))
	}
	return info.GetEgressId(), nil
}

// StopRecording stops an egress. An egress that already ended is not an error.
func (p *Provider) StopRecording(ctx context.Context, egressID string) error {
	if _, err := p.client.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID}); err != nil {
		if api.IsNotFound(err) || api.IsFailedPrecondition(err) {
			slog.DebugContext(ctx, "livekit egress already ended", "egress_id", egressID, logging.ErrKey, err)
			return nil
		}
		return unavailable("stop recording", err)
	}
	return nil
}

// IssueToken mints a room-scoped access token. Capabilities follow the role: teachers
// and admins moderate, students publish, supervisors watch without being listed.
func (p *Provider) IssueToken(req domain.TokenRequest) (*domain.AccessToken, error) {
	if req.RoomName == "" || req.Identity == "" {
		return nil, domain.NewValidationError("room name and identity are required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	signed, expiresAt, err := api.SignToken(p.apiKey, p.apiSecret, api.TokenClaims{
		Identity: req.Identity,
		Name:     req.DisplayName,
		Metadata: req.Metadata,
		Grant:    GrantForRole(req.RoomName, req.Role),
		TTL:      ttl,
	}, p.now())
	if err != nil {
		return nil, domain.NewInternalError("failed to issue access token", err)
	}

	return &domain.AccessToken{
		Token:     signed,
		ServerURL: p.serverURL,
		RoomName:  req.RoomName,
		Identity:  req.Identity,
		Role:      req.Role,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// GrantForRole returns the room capabilities of a participant role.
func GrantForRole(roomName string, role models.ParticipantRole) *auth.VideoGrant {
	yes, no := true, false
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           roomName,
		CanSubscribe:   &yes,
		CanPublish:     &yes,
		CanPublishData: &yes,
	}
	switch role {
	case models.ParticipantRoleTeacher, models.ParticipantRoleAdmin:
		grant.RoomAdmin = true
	case models.ParticipantRoleSupervisor:
		grant.CanPublish = &no
		grant.CanPublishData = &no
		grant.Hidden = true
	}
	return grant
}
