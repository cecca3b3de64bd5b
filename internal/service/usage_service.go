// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
)

// UsageService decrements a subscription's balance once per counted session.
type UsageService struct {
	SessionRepository      domain.SessionRepository
	SubscriptionRepository domain.SubscriptionRepository
}

// NewUsageService creates a new UsageService.
func NewUsageService(
	sessionRepository domain.SessionRepository,
	subscriptionRepository domain.SubscriptionRepository,
) *UsageService {
	return &UsageService{
		SessionRepository:      sessionRepository,
		SubscriptionRepository: subscriptionRepository,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *UsageService) ServiceReady() bool {
	return s.SessionRepository != nil && s.SubscriptionRepository != nil
}

// ApplyUsage counts a finished session against its subscription. The subscription store
// claims the session id and decrements in one atomic write, so concurrent or repeated
// calls decrement at most once; subscription_counted is then set on the session. It
// returns true only for the call that decremented.
//
// Sessions without a subscription, already counted, or not COMPLETED/ABSENT are left
// untouched. Cancelled sessions are never counted.
func (s *UsageService) ApplyUsage(ctx context.Context, sessionID string) (bool, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return false, domain.ErrServiceUnavailable
	}

	session, err := s.SessionRepository.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.SubscriptionCounted || session.SubscriptionID == "" {
		return false, nil
	}
	if session.Status != models.SessionStatusCompleted && session.Status != models.SessionStatusAbsent {
		slog.DebugContext(ctx, "session not in a counted status, skipping usage",
			"session_id", sessionID, "status", session.Status)
		return false, nil
	}

	ctx = logging.AppendCtx(ctx, slog.String("subscription_id", session.SubscriptionID))
	applied, err := s.SubscriptionRepository.ConsumeSession(ctx, session.SubscriptionID, sessionID)
	if err != nil {
		if domain.IsNotFound(err) {
			slog.WarnContext(ctx, "subscription linked to session does not exist", "session_id", sessionID)
			return false, nil
		}
		slog.ErrorContext(ctx, "failed to decrement subscription", logging.ErrKey, err, "session_id", sessionID)
		return false, err
	}
	if applied {
		recordUsageDecrement(ctx, session.AcademyID)
		slog.InfoContext(ctx, "subscription usage applied", "session_id", sessionID)
	}

	_, _, err = s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		if current.SubscriptionCounted {
			return false, nil
		}
		current.SubscriptionCounted = true
		return true, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark session as counted", logging.ErrKey, err, "session_id", sessionID)
		return applied, err
	}
	return applied, nil
}

// GetSubscription returns a subscription owned by academyID.
func (s *UsageService) GetSubscription(ctx context.Context, academyID, subscriptionID string) (*models.Subscription, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	sub, err := s.SubscriptionRepository.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.AcademyID != academyID {
		return nil, domain.NewNotFoundError("subscription not found")
	}
	return sub, nil
}
