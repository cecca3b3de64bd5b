// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// ClientAPI defines the interface for LiveKit server API operations
// This allows for easy mocking and testing of the LiveKit client
type ClientAPI interface {
	CreateRoom(ctx context.Context, request *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, request *livekit.DeleteRoomRequest) error
	StartRoomCompositeEgress(ctx context.Context, request *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error)
	StopEgress(ctx context.Context, request *livekit.StopEgressRequest) (*livekit.EgressInfo, error)
}

const (
	// DefaultClientTimeout is the default HTTP client timeout for LiveKit API requests
	DefaultClientTimeout = 10 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 2
	DefaultInitialBackoff    = 250 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Client represents a LiveKit server API client. It drives the generated Twirp
// RoomService and Egress clients over an HTTP client that carries a signed admin token.
type Client struct {
	rooms  livekit.RoomService
	egress livekit.Egress
	config Config
}

// Config holds the configuration for the LiveKit client
type Config struct {
	// URL is the LiveKit server URL. ws:// and wss:// are mapped to http:// and https://.
	URL       string
	APIKey    string
	APISecret string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Optional: override the base transport for testing
	Transport http.RoundTripper
}

// Ensure that Client implements ClientAPI
var _ ClientAPI = (*Client)(nil)

// IsNotFound reports whether err is a Twirp not_found error.
func IsNotFound(err error) bool {
	return hasCode(err, twirp.NotFound)
}

// IsFailedPrecondition reports whether err is a Twirp failed_precondition error, which
// LiveKit returns when stopping an egress that already ended.
func IsFailedPrecondition(err error) bool {
	return hasCode(err, twirp.FailedPrecondition)
}

func hasCode(err error, code twirp.ErrorCode) bool {
	var twerr twirp.Error
	return errors.As(err, &twerr) && twerr.Code() == code
}

// HTTPURL converts a LiveKit websocket URL to its HTTP form.
func HTTPURL(raw string) string {
	raw = strings.TrimRight(raw, "/")
	switch {
	case strings.HasPrefix(raw, "wss://"):
		return "https://" + strings.TrimPrefix(raw, "wss://")
	case strings.HasPrefix(raw, "ws://"):
		return "http://" + strings.TrimPrefix(raw, "ws://")
	}
	return raw
}

// NewClient creates a new LiveKit API client
func NewClient(config Config) *Client {
	// Set defaults if not provided
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}
	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	config.URL = HTTPURL(config.URL)

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &oauth2.Transport{
			Base:   otelhttp.NewTransport(base),
			Source: NewAdminTokenSource(config.APIKey, config.APISecret),
		},
	}

	c := &Client{config: config}
	retry := twirp.WithClientInterceptors(c.retry)
	c.rooms = livekit.NewRoomServiceJSONClient(config.URL, httpClient, retry)
	c.egress = livekit.NewEgressJSONClient(config.URL, httpClient, retry)
	return c
}

// shouldRetry determines if a Twirp error should be retried
func shouldRetry(ctx context.Context, err error) bool {
	// Don't retry if context was cancelled
	if ctx.Err() != nil {
		return false
	}
	var twerr twirp.Error
	if !errors.As(err, &twerr) {
		return true
	}
	switch twerr.Code() {
	case twirp.Unavailable, twirp.ResourceExhausted, twirp.Internal, twirp.Unknown, twirp.DeadlineExceeded:
		return true
	}
	return false
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return max(time.Duration(backoff+jitter), c.config.InitialBackoff)
}

// retry is a Twirp client interceptor. Unavailable, rate limited and transport failures
// are retried with backoff.
func (c *Client) retry(next twirp.Method) twirp.Method {
	return func(ctx context.Context, request any) (any, error) {
		method, _ := twirp.MethodName(ctx)
		var lastErr error

		for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
			if attempt > 0 {
				backoff := c.calculateBackoff(attempt - 1)
				slog.WarnContext(ctx, "LiveKit API request failed, retrying",
					"method", method,
					"attempt", attempt+1,
					"max_retries", c.config.MaxRetries,
					"backoff", backoff.String(),
					logging.ErrKey, lastErr)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			startTime := time.Now()
			response, err := next(ctx, request)
			if err == nil {
				slog.DebugContext(ctx, "LiveKit API request completed",
					"method", method,
					"duration", time.Since(startTime).String())
				return response, nil
			}
			lastErr = err
			if !shouldRetry(ctx, err) {
				break
			}
		}

		slog.ErrorContext(ctx, "LiveKit API request failed",
			"method", method,
			logging.ErrKey, lastErr)
		return nil, lastErr
	}
}
