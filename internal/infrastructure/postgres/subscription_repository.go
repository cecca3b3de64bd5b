// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package postgres provides a relational backing for the subscription balance, used
// when the billing system shares a database with the session service.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
)

// SubscriptionRepository stores balances in the subscriptions table and counted
// sessions in subscription_usages, keyed by session id.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

var _ domain.SubscriptionRepository = (*SubscriptionRepository)(nil)

// NewSubscriptionRepository creates a repository over pool.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Get returns the subscription and the sessions it already paid for.
func (r *SubscriptionRepository) Get(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, academy_id, status, total_sessions, remaining_sessions, updated_at
		 FROM subscriptions WHERE id = $1`,
		subscriptionID)
	var s models.Subscription
	var status string
	err := row.Scan(&s.ID, &s.AcademyID, &status, &s.TotalSessions, &s.RemainingSessions, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subscription not found")
		}
		return nil, domain.NewInternalError("failed to read subscription", err)
	}
	s.Status = models.SubscriptionStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT session_id FROM subscription_usages WHERE subscription_id = $1 ORDER BY counted_at ASC`,
		subscriptionID)
	if err != nil {
		return nil, domain.NewInternalError("failed to read subscription usages", err)
	}
	s.CountedSessionIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.NewInternalError("failed to read subscription usages", err)
	}
	return &s, nil
}

// Put upserts a subscription as handed over by the billing system.
func (r *SubscriptionRepository) Put(ctx context.Context, s *models.Subscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, academy_id, status, total_sessions, remaining_sessions, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (id) DO UPDATE SET
			academy_id = EXCLUDED.academy_id,
			status = EXCLUDED.status,
			total_sessions = EXCLUDED.total_sessions,
			remaining_sessions = EXCLUDED.remaining_sessions,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.AcademyID, string(s.Status), s.TotalSessions, max(s.RemainingSessions, 0))
	if err != nil {
		return domain.NewInternalError("failed to store subscription", err)
	}
	return nil
}

// ConsumeSession claims sessionID in subscription_usages and decrements the balance in
// the same transaction. The primary key makes a second claim a no-op.
func (r *SubscriptionRepository) ConsumeSession(ctx context.Context, subscriptionID, sessionID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, domain.NewUnavailableError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO subscription_usages (session_id, subscription_id) VALUES ($1, $2)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, subscriptionID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.NewNotFoundError("subscription not found")
		}
		return false, domain.NewInternalError("failed to claim session usage", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE subscriptions SET remaining_sessions = GREATEST(remaining_sessions - 1, 0), updated_at = NOW()
		 WHERE id = $1`,
		subscriptionID)
	if err != nil {
		return false, domain.NewInternalError("failed to decrement subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return false, domain.NewNotFoundError("subscription not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, domain.NewInternalError("failed to commit session usage", err)
	}
	return true, nil
}

// Shutdown closes the pool when the injector shuts down.
func (r *SubscriptionRepository) Shutdown() {
	r.pool.Close()
}

// foreignKeyViolation is the SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
