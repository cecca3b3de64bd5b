// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package auth validates the bearer tokens that front the session HTTP API.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/constants"
)

const (
	// PS256 is the default for Heimdall's JWT finalizer.
	PS256           = validator.PS256
	defaultIssuer   = "heimdall"
	defaultAudience = "itqan-session-service"
	defaultJWKSURL  = "http://heimdall:4457/.well-known/jwks"
	jwksCacheTTL    = 5 * time.Minute
	allowedSkew     = 30 * time.Second
)

// HeimdallClaims contains extra custom claims we want to parse from the JWT token.
type HeimdallClaims struct {
	Principal string `json:"principal"`
	Email     string `json:"email,omitempty"`
}

// Validate provides additional middleware validation of any claims defined in
// HeimdallClaims.
func (c *HeimdallClaims) Validate(ctx context.Context) error {
	if c.Principal == "" {
		return errors.New("principal must be provided")
	}
	return nil
}

// JWTAuthConfig holds the configuration for JWT authentication.
type JWTAuthConfig struct {
	// JWKSURL is the URL to the JSON Web Key Set endpoint
	JWKSURL string
	// Audience is the intended audience for the JWT token
	Audience string
	// MockLocalPrincipal is used for local development to bypass JWT validation
	MockLocalPrincipal string
}

// JWTAuth implements authentication of API callers with Heimdall-issued JWTs.
type JWTAuth struct {
	validator *validator.Validator
	config    JWTAuthConfig
}

// NewJWTAuth creates a new JWT authentication instance.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	jwksURLStr := config.JWKSURL
	if jwksURLStr == "" {
		jwksURLStr = defaultJWKSURL
	}
	jwksURL, err := url.Parse(jwksURLStr)
	if err != nil {
		return nil, err
	}

	audience := config.Audience
	if audience == "" {
		audience = defaultAudience
	}

	issuer, err := url.Parse(defaultIssuer)
	if err != nil {
		return nil, err
	}
	provider := jwks.NewCachingProvider(issuer, jwksCacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	customClaims := func() validator.CustomClaims {
		return &HeimdallClaims{}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		PS256,
		issuer.String(),
		[]string{audience},
		validator.WithCustomClaims(customClaims),
		validator.WithAllowedClockSkew(allowedSkew),
	)
	if err != nil {
		return nil, err
	}

	return &JWTAuth{
		validator: jwtValidator,
		config:    config,
	}, nil
}

// ParsePrincipal extracts the principal from a JWT token.
func (j *JWTAuth) ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error) {
	if j.config.MockLocalPrincipal != "" {
		logger.InfoContext(ctx, "JWT principal parsing disabled; returning mock principal",
			"principal", j.config.MockLocalPrincipal)
		return j.config.MockLocalPrincipal, nil
	}

	if j.validator == nil {
		return "", errors.New("JWT validator is not set up")
	}

	parsedJWT, err := j.validator.ValidateToken(ctx, token)
	if err != nil {
		logger.WarnContext(ctx, "JWT validation failed", logging.ErrKey, err)
		return "", err
	}

	claims, ok := parsedJWT.(*validator.ValidatedClaims)
	if !ok {
		return "", errors.New("failed to get validated authorization claims")
	}
	customClaims, ok := claims.CustomClaims.(*HeimdallClaims)
	if !ok {
		return "", errors.New("failed to get custom authorization claims")
	}
	return customClaims.Principal, nil
}

// Middleware rejects requests without a valid bearer token and stores the principal in
// the request context. Paths in public are served without authentication.
func (j *JWTAuth) Middleware(public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range public {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, _ := strings.CutPrefix(r.Header.Get(constants.AuthorizationHeader), "Bearer ")
			principal, err := j.ParsePrincipal(r.Context(), strings.TrimSpace(token), slog.Default())
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), constants.PrincipalContextID, principal)
			ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal set by [JWTAuth.Middleware].
func PrincipalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(constants.PrincipalContextID).(string)
	return principal
}
