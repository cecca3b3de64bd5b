// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
)

// NatsSessionRepository is the NATS KV store repository for sessions.
// Session entities and the room-name index share the sessions bucket.
type NatsSessionRepository struct {
	*NatsBaseRepository[models.Session]
	keys *KeyBuilder
}

// NewNatsSessionRepository creates a new NATS KV store repository for sessions.
func NewNatsSessionRepository(kvStore INatsKeyValue) *NatsSessionRepository {
	return &NatsSessionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Session](kvStore, "session"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsSessionRepository) sessionKey(sessionID string) string {
	return r.keys.EntityKeyEncoded(KeyPrefixSession, sessionID)
}

func (r *NatsSessionRepository) pendingKey(sessionID string) string {
	return r.keys.IndexKey(KeyPrefixIndexPending, sessionID)
}

// Create stores a new session. A session with the same id yields a Conflict error.
func (r *NatsSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return domain.NewValidationError("session id is required")
	}
	now := time.Now().UTC()
	session.CreatedAt = &now
	session.UpdatedAt = &now

	// the pending entry goes first so a crash never leaves an unswept session behind
	if !session.Settled() {
		if err := r.PutIndex(ctx, r.pendingKey(session.ID), session.ID); err != nil {
			return err
		}
	}
	if err := r.NatsBaseRepository.Create(ctx, r.sessionKey(session.ID), session); err != nil {
		return err
	}
	if session.MeetingRoomName != "" {
		return r.BindRoomName(ctx, session.MeetingRoomName, session.ID)
	}
	return nil
}

// Get retrieves a session by id
func (r *NatsSessionRepository) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return r.NatsBaseRepository.Get(ctx, r.sessionKey(sessionID))
}

// GetWithRevision retrieves a session with its revision by id
func (r *NatsSessionRepository) GetWithRevision(ctx context.Context, sessionID string) (*models.Session, uint64, error) {
	return r.NatsBaseRepository.GetWithRevision(ctx, r.sessionKey(sessionID))
}

// Mutate applies fn to the latest stored session with optimistic concurrency control.
// A write that settles the session drops its pending entry.
func (r *NatsSessionRepository) Mutate(ctx context.Context, sessionID string, fn domain.SessionMutation) (*models.Session, bool, error) {
	stored, changed, err := r.NatsBaseRepository.Mutate(ctx, r.sessionKey(sessionID), nil,
		func(session *models.Session, _ bool) (bool, error) {
			changed, err := fn(session)
			if changed && err == nil {
				now := time.Now().UTC()
				session.UpdatedAt = &now
			}
			return changed, err
		})
	if err == nil && changed && stored.Settled() {
		r.settle(ctx, sessionID)
	}
	return stored, changed, err
}

// settle removes the pending entry. A failure only costs the sweep one extra look.
func (r *NatsSessionRepository) settle(ctx context.Context, sessionID string) {
	if err := r.DeleteIndex(ctx, r.pendingKey(sessionID)); err != nil {
		slog.WarnContext(ctx, "failed to drop pending session entry", "session_id", sessionID, logging.ErrKey, err)
	}
}

// ListUnsettled returns the sessions still carrying a pending entry: every session
// not cancelled, finalized and counted yet. Entries of settled or missing sessions are
// cleaned up on the way.
func (r *NatsSessionRepository) ListUnsettled(ctx context.Context) ([]*models.Session, error) {
	keys, err := r.ListKeysFiltered(ctx, r.keys.IndexFilter(KeyPrefixIndexPending))
	if err != nil {
		return nil, err
	}

	var sessions []*models.Session
	for _, key := range keys {
		sessionID, err := r.GetIndex(ctx, key)
		if err != nil {
			if !domain.IsNotFound(err) {
				slog.WarnContext(ctx, "failed to read pending session entry, skipping", "key", key, logging.ErrKey, err)
			}
			continue
		}
		session, err := r.Get(ctx, sessionID)
		switch {
		case domain.IsNotFound(err):
			r.settle(ctx, sessionID)
			continue
		case err != nil:
			slog.WarnContext(ctx, "failed to get pending session, skipping", "session_id", sessionID, logging.ErrKey, err)
			continue
		}
		if session.Settled() {
			r.settle(ctx, sessionID)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetByRoomName resolves a meeting room name through the room index.
func (r *NatsSessionRepository) GetByRoomName(ctx context.Context, roomName string) (*models.Session, error) {
	sessionID, err := r.GetIndex(ctx, r.keys.IndexKey(KeyPrefixIndexRoom, roomName))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundError("no session bound to room " + roomName)
		}
		return nil, err
	}
	return r.Get(ctx, sessionID)
}

// BindRoomName writes the room index entry.
func (r *NatsSessionRepository) BindRoomName(ctx context.Context, roomName, sessionID string) error {
	return r.PutIndex(ctx, r.keys.IndexKey(KeyPrefixIndexRoom, roomName), sessionID)
}
