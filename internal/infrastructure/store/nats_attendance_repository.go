// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
)

// NatsAttendanceRepository is the NATS KV store repository for attendance ledger rows.
// Each (session, participant) pair is a single key, so every ledger mutation for that
// pair is serialized by the key revision.
type NatsAttendanceRepository struct {
	*NatsBaseRepository[models.MeetingAttendance]
	keys *KeyBuilder
}

// NewNatsAttendanceRepository creates a new NATS KV store repository for attendance rows.
func NewNatsAttendanceRepository(kvStore INatsKeyValue) *NatsAttendanceRepository {
	return &NatsAttendanceRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.MeetingAttendance](kvStore, "attendance"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsAttendanceRepository) rowKey(sessionID, participantID string) string {
	return r.keys.EntityKeyEncoded(KeyPrefixAttendance, sessionID, participantID)
}

// Get retrieves one ledger row
func (r *NatsAttendanceRepository) Get(ctx context.Context, sessionID, participantID string) (*models.MeetingAttendance, error) {
	return r.NatsBaseRepository.Get(ctx, r.rowKey(sessionID, participantID))
}

// ListBySession returns every ledger row of a session
func (r *NatsAttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.MeetingAttendance, error) {
	return r.ListEntitiesEncoded(ctx, r.keys.DecodedPrefix(KeyPrefixAttendance, sessionID), r.keys)
}

// Mutate applies fn to the row, creating it lazily on the first write.
func (r *NatsAttendanceRepository) Mutate(
	ctx context.Context,
	sessionID, participantID string,
	fn domain.AttendanceMutation,
) (*models.MeetingAttendance, bool, error) {
	init := func() *models.MeetingAttendance {
		now := time.Now().UTC()
		return &models.MeetingAttendance{
			SessionID:     sessionID,
			ParticipantID: participantID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	return r.NatsBaseRepository.Mutate(ctx, r.rowKey(sessionID, participantID), init,
		func(row *models.MeetingAttendance, exists bool) (bool, error) {
			changed, err := fn(row, exists)
			if changed && err == nil {
				row.UpdatedAt = time.Now().UTC()
			}
			return changed, err
		})
}
