// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/concurrent"
)

// participantWorkers bounds concurrent ledger writes for one session.
const participantWorkers = 4

// AttendanceService owns the attendance ledger: it appends presence events and runs the
// calculator over the rows of a session.
type AttendanceService struct {
	SessionRepository         domain.SessionRepository
	AttendanceRepository      domain.AttendanceRepository
	AcademySettingsRepository domain.AcademySettingsRepository

	now clock
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(
	sessionRepository domain.SessionRepository,
	attendanceRepository domain.AttendanceRepository,
	academySettingsRepository domain.AcademySettingsRepository,
) *AttendanceService {
	return &AttendanceService{
		SessionRepository:         sessionRepository,
		AttendanceRepository:      attendanceRepository,
		AcademySettingsRepository: academySettingsRepository,
		now:                       utcNow,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AttendanceService) ServiceReady() bool {
	return s.SessionRepository != nil && s.AttendanceRepository != nil
}

// PresenceInput is one join or leave reported by the meeting provider.
type PresenceInput struct {
	EventID     string
	Identity    string
	DisplayName string
	Role        models.ParticipantRole
	Type        models.PresenceEventType
	At          time.Time
}

// RecordPresence appends a presence event to the participant's ledger row, creating the
// row on first use. Replaying an event id leaves the row untouched and reports false.
func (s *AttendanceService) RecordPresence(ctx context.Context, sessionID string, in PresenceInput) (*models.MeetingAttendance, bool, error) {
	if in.Identity == "" {
		return nil, false, domain.NewValidationError("participant identity is required")
	}
	if in.Type != models.PresenceJoin && in.Type != models.PresenceLeave {
		return nil, false, domain.NewValidationError("unknown presence event type " + string(in.Type))
	}

	participantID := models.ParticipantIDFromIdentity(in.Identity)
	now := s.now()
	row, changed, err := s.AttendanceRepository.Mutate(ctx, sessionID, participantID,
		func(row *models.MeetingAttendance, exists bool) (bool, error) {
			if !exists {
				row.SessionID = sessionID
				row.ParticipantID = participantID
				row.Identity = in.Identity
				row.CreatedAt = now
			}
			if in.DisplayName != "" {
				row.DisplayName = in.DisplayName
			}
			if row.Role == "" && in.Role.Valid() {
				row.Role = in.Role
			}
			if !row.Record(models.PresenceEvent{EventID: in.EventID, Type: in.Type, At: in.At.UTC()}) {
				return false, nil
			}
			row.UpdatedAt = now
			return true, nil
		})
	if err != nil {
		return nil, false, err
	}

	if !changed {
		slog.DebugContext(ctx, "presence event already recorded",
			"session_id", sessionID, "participant_id", participantID, "event_id", in.EventID)
	} else if in.Type == models.PresenceLeave && row.IgnoredLeaves > 0 {
		slog.InfoContext(ctx, "leave without open interval recorded as no-op close",
			"session_id", sessionID, "participant_id", participantID, "ignored_leaves", row.IgnoredLeaves)
	}
	return row, changed, nil
}

// CloseAll records a leave at instant for every participant still in the meeting. Each
// synthetic leave carries eventID scoped to the participant so a replay is a no-op.
func (s *AttendanceService) CloseAll(ctx context.Context, sessionID, eventID string, at time.Time) (int, error) {
	rows, err := s.AttendanceRepository.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	closed := 0
	var functions []func() error
	for _, row := range rows {
		if !row.InMeeting() {
			continue
		}
		functions = append(functions, func() error {
			_, changed, err := s.RecordPresence(ctx, sessionID, PresenceInput{
				EventID:  eventID + "/" + row.ParticipantID,
				Identity: row.Identity,
				Type:     models.PresenceLeave,
				At:       at,
			})
			if err != nil {
				return err
			}
			if changed {
				mu.Lock()
				closed++
				mu.Unlock()
			}
			return nil
		})
	}

	errs := concurrent.NewWorkerPool(participantWorkers).RunAll(ctx, functions...)
	return closed, errors.Join(errs...)
}

// Finalize runs the calculator for every ledger row of session, writing the derived
// fields and is_calculated in one write per row. Rows already calculated are kept. It
// returns the session-level verdict.
func (s *AttendanceService) Finalize(ctx context.Context, session *models.Session, endedAt time.Time) (models.AttendanceStatus, error) {
	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	window := session.Window(settings)
	policy := PolicyFromSettings(settings)

	return s.finalizeRows(ctx, session.ID, func(row *models.MeetingAttendance) AttendanceResult {
		return CalculateAttendance(window, row, endedAt, policy)
	})
}

// FinalizeAbsent marks every ledger row of the session ABSENT without a calculator pass.
func (s *AttendanceService) FinalizeAbsent(ctx context.Context, session *models.Session) error {
	_, err := s.finalizeRows(ctx, session.ID, func(row *models.MeetingAttendance) AttendanceResult {
		return AttendanceResult{ParticipantID: row.ParticipantID, Status: models.AttendanceStatusAbsent}
	})
	return err
}

func (s *AttendanceService) finalizeRows(ctx context.Context, sessionID string, calculate func(*models.MeetingAttendance) AttendanceResult) (models.AttendanceStatus, error) {
	rows, err := s.AttendanceRepository.ListBySession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	now := s.now()
	var mu sync.Mutex
	verdicts := make(map[string]models.AttendanceStatus, len(rows))
	functions := make([]func() error, 0, len(rows))
	for _, row := range rows {
		functions = append(functions, func() error {
			stored, _, err := s.AttendanceRepository.Mutate(ctx, sessionID, row.ParticipantID,
				func(current *models.MeetingAttendance, exists bool) (bool, error) {
					if !exists || current.IsCalculated {
						return false, nil
					}
					res := calculate(current)
					current.TotalDurationMinutes = res.TotalDurationMinutes
					current.AttendancePercentage = res.Percentage
					current.AttendanceStatus = res.Status
					current.IsCalculated = true
					current.CalculatedAt = &now
					current.UpdatedAt = now
					return true, nil
				})
			if err != nil {
				slog.ErrorContext(ctx, "failed to finalize attendance row", logging.ErrKey, err,
					"session_id", sessionID, "participant_id", row.ParticipantID)
				return err
			}
			mu.Lock()
			verdicts[stored.ParticipantID] = stored.AttendanceStatus.Display()
			mu.Unlock()
			return nil
		})
	}

	if errs := concurrent.NewWorkerPool(participantWorkers).RunAll(ctx, functions...); len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return sessionVerdict(verdicts, rows), nil
}

// HasJoins reports whether anyone ever joined the session's room.
func (s *AttendanceService) HasJoins(ctx context.Context, sessionID string) (bool, error) {
	rows, err := s.AttendanceRepository.ListBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.FirstJoinTime != nil {
			return true, nil
		}
	}
	return false, nil
}

// ParticipantAttendance is the read model of one ledger row.
type ParticipantAttendance struct {
	*models.MeetingAttendance
	InMeeting bool `json:"in_meeting"`
	// Live is the calculation up to now for rows not finalized yet.
	Live *AttendanceResult `json:"live,omitempty"`
}

// SessionAttendance is the attendance summary of a session.
type SessionAttendance struct {
	SessionID        string                   `json:"session_id"`
	AttendanceStatus models.AttendanceStatus  `json:"attendance_status,omitempty"`
	Finalized        bool                     `json:"finalized"`
	Participants     []*ParticipantAttendance `json:"participants"`
}

// Report returns every ledger row of a session. Unknown stored verdicts read as pending
// recalculation, and rows not finalized carry a live calculation.
func (s *AttendanceService) Report(ctx context.Context, academyID, sessionID string) (*SessionAttendance, error) {
	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.AttendanceRepository.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	window := session.Window(settings)
	policy := PolicyFromSettings(settings)
	now := s.now()

	report := &SessionAttendance{
		SessionID:        session.ID,
		AttendanceStatus: session.AttendanceStatus.Display(),
		Finalized:        session.AttendanceFinalizedAt != nil,
		Participants:     make([]*ParticipantAttendance, 0, len(rows)),
	}
	for _, row := range rows {
		pa := &ParticipantAttendance{MeetingAttendance: row, InMeeting: row.InMeeting()}
		if row.AttendanceStatus.Display() == models.AttendanceStatusPendingRecalculation {
			slog.WarnContext(ctx, "unknown attendance status stored",
				"session_id", sessionID, "participant_id", row.ParticipantID, "status", row.AttendanceStatus)
		}
		row.AttendanceStatus = row.AttendanceStatus.Display()
		if !row.IsCalculated {
			live := CalculateAttendance(window, row, now, policy)
			pa.Live = &live
		}
		report.Participants = append(report.Participants, pa)
	}
	return report, nil
}

// LiveProgress computes the attendance of one participant up to now without persisting it.
func (s *AttendanceService) LiveProgress(ctx context.Context, academyID, sessionID, participantID string) (*AttendanceResult, error) {
	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	row, err := s.AttendanceRepository.Get(ctx, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)

	end := s.now()
	if session.EndedAt != nil && session.EndedAt.Before(end) {
		end = *session.EndedAt
	}
	res := CalculateAttendance(session.Window(settings), row, end, PolicyFromSettings(settings))
	return &res, nil
}
