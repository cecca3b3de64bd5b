// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// SessionMutation inspects and optionally modifies a session inside an optimistic
// update. Returning false skips the write. It may run more than once when a concurrent
// writer wins, so it must be free of side effects.
type SessionMutation func(session *models.Session) (changed bool, err error)

// AttendanceMutation is the ledger counterpart of [SessionMutation]. The row is freshly
// initialized (exists == false) when no ledger row was stored yet.
type AttendanceMutation func(row *models.MeetingAttendance, exists bool) (changed bool, err error)

// RecordingMutation is the recording counterpart of [SessionMutation].
type RecordingMutation func(recording *models.Recording) (changed bool, err error)

// SessionRepository defines the interface for session storage operations.
// This interface can be implemented by different storage backends (NATS, PostgreSQL, etc.)
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	GetWithRevision(ctx context.Context, sessionID string) (*models.Session, uint64, error)
	// Mutate applies fn under optimistic concurrency, retrying on revision conflicts.
	// It returns the stored session and whether fn's change was written.
	Mutate(ctx context.Context, sessionID string, fn SessionMutation) (*models.Session, bool, error)

	// GetByRoomName resolves a meeting room name to its session.
	GetByRoomName(ctx context.Context, roomName string) (*models.Session, error)
	// BindRoomName records the room name index entry for a session.
	BindRoomName(ctx context.Context, roomName, sessionID string) error

	// ListUnsettled returns the sessions the sweep may still have to act on. Its cost
	// follows the open workload, not the stored history.
	ListUnsettled(ctx context.Context) ([]*models.Session, error)
}

// AttendanceRepository stores the per-(session, participant) ledger rows.
type AttendanceRepository interface {
	Get(ctx context.Context, sessionID, participantID string) (*models.MeetingAttendance, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.MeetingAttendance, error)
	// Mutate serializes changes to a single row, creating it lazily on first write.
	Mutate(ctx context.Context, sessionID, participantID string, fn AttendanceMutation) (*models.MeetingAttendance, bool, error)
}

// RecordingRepository stores recording rows.
type RecordingRepository interface {
	Create(ctx context.Context, recording *models.Recording) error
	Get(ctx context.Context, recordingID string) (*models.Recording, error)
	Mutate(ctx context.Context, recordingID string, fn RecordingMutation) (*models.Recording, bool, error)
	GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Recording, error)
}

// SubscriptionRepository is the boundary to the externally owned session balance.
type SubscriptionRepository interface {
	Get(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	// ConsumeSession atomically checks that sessionID has not been counted yet and
	// decrements the remaining balance (never below zero). It returns false when the
	// session had already been counted.
	ConsumeSession(ctx context.Context, subscriptionID, sessionID string) (bool, error)
}

// AcademySettingsRepository reads per-academy configuration.
type AcademySettingsRepository interface {
	// Get returns a NotFound error when the academy has no stored settings.
	Get(ctx context.Context, academyID string) (*models.AcademySettings, error)
	Put(ctx context.Context, settings *models.AcademySettings) error
}

// ProcessedEventRepository remembers provider event ids that were fully applied.
type ProcessedEventRepository interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
