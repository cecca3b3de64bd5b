// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/utils"
)

// SessionService owns the session state machine. Every transition is a revision-checked
// write on the session key; a caller that loses a race re-reads the session and, when it
// is already terminal, returns it unchanged.
type SessionService struct {
	SessionRepository         domain.SessionRepository
	AcademySettingsRepository domain.AcademySettingsRepository
	AttendanceService         *AttendanceService
	UsageService              *UsageService
	MeetingService            *MeetingService
	MessageBuilder            domain.MessageBuilder
	Config                    ServiceConfig

	now clock
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepository domain.SessionRepository,
	academySettingsRepository domain.AcademySettingsRepository,
	attendanceService *AttendanceService,
	usageService *UsageService,
	meetingService *MeetingService,
	messageBuilder domain.MessageBuilder,
	config ServiceConfig,
) *SessionService {
	return &SessionService{
		SessionRepository:         sessionRepository,
		AcademySettingsRepository: academySettingsRepository,
		AttendanceService:         attendanceService,
		UsageService:              usageService,
		MeetingService:            meetingService,
		MessageBuilder:            messageBuilder,
		Config:                    config.WithDefaults(),
		now:                       utcNow,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SessionService) ServiceReady() bool {
	return s.SessionRepository != nil &&
		s.AttendanceService != nil &&
		s.UsageService != nil &&
		s.MeetingService != nil &&
		s.MessageBuilder != nil
}

func (s *SessionService) ready(ctx context.Context) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.ErrServiceUnavailable
	}
	return nil
}

// Get returns a session as readers see it: a SCHEDULED session inside its ready window
// reads as READY, and an unknown attendance verdict reads as pending recalculation.
func (s *SessionService) Get(ctx context.Context, academyID, sessionID string) (*models.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	session.Status = models.EffectiveStatus(session.Status, session.Window(settings), s.now())
	if display := session.AttendanceStatus.Display(); display != session.AttendanceStatus {
		slog.WarnContext(ctx, "unknown session attendance status stored",
			"session_id", session.ID, "status", session.AttendanceStatus)
		session.AttendanceStatus = display
	}
	return session, nil
}

// Start moves a SCHEDULED or READY session to ONGOING. It is only allowed inside the
// active window and opens the room first, so a provider failure leaves the session as it
// was. Starting an ONGOING session is a no-op.
func (s *SessionService) Start(ctx context.Context, academyID, sessionID string) (*models.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusOngoing {
		return session, nil
	}
	if session.Status.IsTerminal() {
		return nil, domain.NewIllegalTransitionError(fmt.Sprintf("cannot start a %s session", session.Status))
	}

	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	window := session.Window(settings)
	now := s.now()
	if !window.IsActive(now) {
		return nil, domain.NewIllegalTransitionError(fmt.Sprintf(
			"session can only start between %s and %s",
			window.PreparationStart().Format(time.RFC3339), window.ScheduledEnd().Format(time.RFC3339)))
	}

	if _, err := s.MeetingService.CreateRoom(ctx, session.AcademyID, session); err != nil {
		return nil, err
	}

	stored, changed, err := s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		switch {
		case current.Status == models.SessionStatusOngoing:
			return false, nil
		case current.Status.IsTerminal():
			return false, domain.NewIllegalTransitionError(fmt.Sprintf("cannot start a %s session", current.Status))
		}
		current.Status = models.SessionStatusOngoing
		current.StartedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.transitioned(ctx, models.SessionEventStarted, stored)
	}
	return stored, nil
}

// Complete moves an ONGOING session to COMPLETED, finalizes attendance and applies the
// subscription usage. Completing a finished session is a no-op.
func (s *SessionService) Complete(ctx context.Context, academyID, sessionID string) (*models.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if isFinished(session.Status) {
		return session, nil
	}
	if session.Status != models.SessionStatusOngoing {
		return nil, domain.NewIllegalTransitionError(fmt.Sprintf("cannot complete a %s session", session.Status))
	}
	return s.complete(ctx, sessionID, false)
}

// complete writes the COMPLETED transition. allowPreStart lets the sweep finish sessions
// that had participants but were never explicitly started.
func (s *SessionService) complete(ctx context.Context, sessionID string, allowPreStart bool) (*models.Session, error) {
	now := s.now()
	stored, changed, err := s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		switch {
		case current.Status.IsTerminal():
			return false, nil
		case current.Status == models.SessionStatusOngoing:
		case allowPreStart && current.Status.IsPreStart():
		default:
			return false, domain.NewIllegalTransitionError(fmt.Sprintf("cannot complete a %s session", current.Status))
		}
		current.Status = models.SessionStatusCompleted
		current.EndedAt = &now
		current.ActualDurationMinutes = actualDuration(current, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return stored, nil
	}

	s.closeMeeting(ctx, stored)
	stored = s.finalize(ctx, stored)
	s.transitioned(ctx, models.SessionEventCompleted, stored)
	return stored, nil
}

// MarkAbsent finishes a session nobody attended: individual sessions become ABSENT and
// group sessions COMPLETED, both with attendance ABSENT and without a calculator pass.
// It is only allowed once the window including the buffer has elapsed and no participant
// ever joined.
func (s *SessionService) MarkAbsent(ctx context.Context, academyID, sessionID string) (*models.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if isFinished(session.Status) {
		return session, nil
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, domain.NewIllegalTransitionError("cannot mark a cancelled session absent")
	}
	if err := s.checkAbsent(ctx, session); err != nil {
		return nil, err
	}
	return s.markAbsent(ctx, sessionID)
}

// checkAbsent holds the preconditions the sweep applies before marking a session absent.
func (s *SessionService) checkAbsent(ctx context.Context, session *models.Session) error {
	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	window := session.Window(settings)
	if !window.IsOverdue(s.now()) {
		return domain.NewIllegalTransitionError(fmt.Sprintf(
			"session can only be marked absent after %s", window.AutoCompleteAt().Format(time.RFC3339)))
	}
	joined, err := s.AttendanceService.HasJoins(ctx, session.ID)
	if err != nil {
		return err
	}
	if joined {
		return domain.NewIllegalTransitionError("participants joined the session; complete it instead")
	}
	return nil
}

func (s *SessionService) markAbsent(ctx context.Context, sessionID string) (*models.Session, error) {
	now := s.now()
	stored, changed, err := s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		if current.Status.IsTerminal() {
			return false, nil
		}
		if current.Individual {
			current.Status = models.SessionStatusAbsent
		} else {
			current.Status = models.SessionStatusCompleted
		}
		current.AttendanceStatus = models.AttendanceStatusAbsent
		current.EndedAt = &now
		if current.StartedAt != nil {
			current.ActualDurationMinutes = actualDuration(current, now)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return stored, nil
	}

	s.closeMeeting(ctx, stored)
	stored = s.finalize(ctx, stored)
	s.transitioned(ctx, models.SessionEventAbsent, stored)
	return stored, nil
}

// CancelRequest attributes a cancellation.
type CancelRequest struct {
	Reason    string `json:"reason" validate:"max=1000"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

// Cancel moves a non-terminal session to CANCELLED and closes its room. Cancelled
// sessions are never counted against a subscription. Cancelling twice is a no-op.
func (s *SessionService) Cancel(ctx context.Context, academyID, sessionID string, req CancelRequest) (*models.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx = logging.WithSession(ctx, sessionID, "")

	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCancelled {
		return session, nil
	}
	if session.Status.IsTerminal() {
		return nil, domain.NewIllegalTransitionError(fmt.Sprintf("cannot cancel a %s session", session.Status))
	}

	now := s.now()
	stored, changed, err := s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		if current.Status.IsTerminal() {
			return false, nil
		}
		current.Status = models.SessionStatusCancelled
		current.CancelledAt = &now
		current.CancellationReason = req.Reason
		current.CancelledBy = req.ActorID
		current.CancelledByRole = req.ActorRole
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.closeMeeting(ctx, stored)
		s.transitioned(ctx, models.SessionEventCancelled, stored)
	}
	return stored, nil
}

// finalize calculates attendance, stores the session verdict with attendance_finalized_at
// and applies usage. Failures are logged and left for the sweep to retry.
func (s *SessionService) finalize(ctx context.Context, session *models.Session) *models.Session {
	verdict := session.AttendanceStatus
	var err error
	if session.AttendanceStatus == models.AttendanceStatusAbsent {
		err = s.AttendanceService.FinalizeAbsent(ctx, session)
	} else {
		verdict, err = s.AttendanceService.Finalize(ctx, session, utils.TimeValue(session.EndedAt))
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to finalize attendance", logging.ErrKey, err)
		return session
	}

	now := s.now()
	stored, _, err := s.SessionRepository.Mutate(ctx, session.ID, func(current *models.Session) (bool, error) {
		if current.AttendanceFinalizedAt != nil {
			return false, nil
		}
		current.AttendanceStatus = verdict
		current.AttendanceFinalizedAt = &now
		return true, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store session attendance", logging.ErrKey, err)
		return session
	}

	if _, err := s.UsageService.ApplyUsage(ctx, session.ID); err != nil {
		slog.ErrorContext(ctx, "failed to apply subscription usage", logging.ErrKey, err)
		return stored
	}
	if latest, err := s.SessionRepository.Get(ctx, session.ID); err == nil {
		return latest
	}
	return stored
}

// closeMeeting ends the room and stops an active recording. Both are best effort.
func (s *SessionService) closeMeeting(ctx context.Context, session *models.Session) {
	s.MeetingService.stopActiveRecording(ctx, session)
	if !session.HasRoom() {
		return
	}
	if err := s.MeetingService.EndRoom(ctx, session.MeetingRoomName); err != nil {
		slog.WarnContext(ctx, "failed to end meeting room", logging.ErrKey, err, "room_name", session.MeetingRoomName)
	}
}

// transitioned publishes the lifecycle event of a written transition.
func (s *SessionService) transitioned(ctx context.Context, action models.SessionEventAction, session *models.Session) {
	recordTransition(ctx, string(session.Status))
	slog.InfoContext(ctx, "session transitioned", "action", action, "status", session.Status)
	if err := s.MessageBuilder.SendSessionEvent(ctx, action, *session); err != nil {
		slog.ErrorContext(ctx, "failed to publish session event", logging.ErrKey, err, "action", action)
	}
}

// isFinished reports whether the session already reached COMPLETED or ABSENT.
func isFinished(status models.SessionStatus) bool {
	return status == models.SessionStatusCompleted || status == models.SessionStatusAbsent
}

// actualDuration is ended_at - started_at in whole minutes, truncated.
func actualDuration(session *models.Session, endedAt time.Time) *int {
	if session.StartedAt == nil {
		return nil
	}
	minutes := max(0, int(endedAt.Sub(*session.StartedAt)/time.Minute))
	return &minutes
}
