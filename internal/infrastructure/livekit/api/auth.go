// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
	"golang.org/x/oauth2"
)

// adminIdentity is the identity stamped on server API tokens.
const adminIdentity = "session-service"

// TokenClaims are the inputs of a signed access token.
type TokenClaims struct {
	Identity string
	Name     string
	Metadata string
	Grant    *auth.VideoGrant
	TTL      time.Duration
}

// SignToken signs a LiveKit access token issued by apiKey. The returned instant is when
// the token stops being valid, relative to now.
func SignToken(apiKey, apiSecret string, claims TokenClaims, now time.Time) (string, time.Time, error) {
	if apiKey == "" || apiSecret == "" {
		return "", time.Time{}, fmt.Errorf("livekit api key and secret are required")
	}

	token := auth.NewAccessToken(apiKey, apiSecret).
		SetIdentity(claims.Identity).
		SetValidFor(claims.TTL)
	if claims.Grant != nil {
		token.SetVideoGrant(claims.Grant)
	}
	if claims.Name != "" {
		token.SetName(claims.Name)
	}
	if claims.Metadata != "" {
		token.SetMetadata(claims.Metadata)
	}

	signed, err := token.ToJWT()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, now.Add(claims.TTL), nil
}

// adminTokenSource mints short-lived server API tokens for the oauth2 transport.
type adminTokenSource struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	now       func() time.Time
}

// Token implements [oauth2.TokenSource].
func (s *adminTokenSource) Token() (*oauth2.Token, error) {
	signed, expiresAt, err := SignToken(s.apiKey, s.apiSecret, TokenClaims{
		Identity: adminIdentity,
		Grant: &auth.VideoGrant{
			RoomCreate: true,
			RoomList:   true,
			RoomRecord: true,
			RoomAdmin:  true,
		},
		TTL: s.ttl,
	}, s.now())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Expiry:      expiresAt,
	}, nil
}

// NewAdminTokenSource returns a cached token source for server API calls. Tokens are
// renewed shortly before they expire.
func NewAdminTokenSource(apiKey, apiSecret string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &adminTokenSource{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       10 * time.Minute,
		now:       time.Now,
	})
}
