// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// RoomOptions are the provider settings applied when a room is created.
type RoomOptions struct {
	EmptyTimeout    time.Duration
	MaxParticipants int
	Metadata        string
}

// RoomHandle identifies a provider room bound to a session.
type RoomHandle struct {
	Name      string `json:"name"`
	SID       string `json:"sid,omitempty"`
	SessionID string `json:"session_id"`
	// Created is false when an existing room was returned without contacting the provider.
	Created bool `json:"created"`
}

// AccessToken is a short-lived, room-scoped credential. Tokens are never persisted.
type AccessToken struct {
	Token     string                 `json:"token"`
	ServerURL string                 `json:"server_url"`
	RoomName  string                 `json:"room_name"`
	Identity  string                 `json:"identity"`
	Role      models.ParticipantRole `json:"role"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// TokenRequest carries the inputs for minting an access token.
type TokenRequest struct {
	RoomName    string
	Identity    string
	DisplayName string
	Role        models.ParticipantRole
	Metadata    string
	TTL         time.Duration
}

// MeetingProvider is the boundary to the external real-time media provider. Every call is
// expected to be bounded by the caller's context and to be safe to retry.
type MeetingProvider interface {
	// CreateRoom creates a room, returning the provider room sid. Creating an existing
	// room returns it unchanged.
	CreateRoom(ctx context.Context, name string, opts RoomOptions) (string, error)
	// DeleteRoom closes a room. A room that no longer exists is not an error.
	DeleteRoom(ctx context.Context, name string) error
	// StartRoomRecording starts a composite recording, returning the egress id.
	StartRoomRecording(ctx context.Context, roomName, filepath string) (string, error)
	// StopRecording stops an egress. An egress that already ended is not an error.
	StopRecording(ctx context.Context, egressID string) error
}

// TokenIssuer mints participant access tokens.
type TokenIssuer interface {
	IssueToken(req TokenRequest) (*AccessToken, error)
}

// WebhookValidator verifies the authenticity of inbound provider webhooks.
type WebhookValidator interface {
	// ValidateSignature checks the Authorization header value against the raw body.
	ValidateSignature(body []byte, authorization string) error
}
