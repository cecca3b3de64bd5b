// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/concurrent"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// SchedulingService persists new sessions, one at a time or as a recurring series.
type SchedulingService struct {
	SessionRepository domain.SessionRepository
	Config            ServiceConfig

	now clock
}

// NewSchedulingService creates a new SchedulingService.
func NewSchedulingService(sessionRepository domain.SessionRepository, config ServiceConfig) *SchedulingService {
	return &SchedulingService{
		SessionRepository: sessionRepository,
		Config:            config.WithDefaults(),
		now:               utcNow,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SchedulingService) ServiceReady() bool {
	return s.SessionRepository != nil
}

// CreateSessionRequest describes a session to schedule.
type CreateSessionRequest struct {
	Kind             models.SessionKind `json:"kind" validate:"required,oneof=quran academic interactive"`
	Title            string             `json:"title" validate:"max=300"`
	TeacherID        string             `json:"teacher_id" validate:"required"`
	Individual       bool               `json:"individual"`
	RecordingEnabled bool               `json:"recording_enabled"`
	ScheduledAt      time.Time          `json:"scheduled_at" validate:"required"`
	DurationMinutes  int                `json:"duration_minutes" validate:"required,min=1,max=600"`
	SubscriptionID   string             `json:"subscription_id"`

	Quran       *models.QuranDetails       `json:"quran,omitempty"`
	Academic    *models.AcademicDetails    `json:"academic,omitempty"`
	Interactive *models.InteractiveDetails `json:"interactive,omitempty"`
}

// ScheduleSeriesRequest repeats a session template by an RFC 5545 recurrence rule.
// The template's scheduled_at is the first occurrence.
type ScheduleSeriesRequest struct {
	Template CreateSessionRequest `json:"template" validate:"required"`
	RRule    string               `json:"rrule" validate:"required"`
	Count    int                  `json:"count" validate:"min=0,max=200"`
}

func (r CreateSessionRequest) toSession(academyID string, at time.Time, now time.Time) *models.Session {
	session := &models.Session{
		ID:               uuid.New().String(),
		AcademyID:        academyID,
		Kind:             r.Kind,
		Title:            r.Title,
		TeacherID:        r.TeacherID,
		Individual:       r.Individual,
		RecordingEnabled: r.RecordingEnabled,
		ScheduledAt:      at.UTC(),
		DurationMinutes:  r.DurationMinutes,
		Status:           models.SessionStatusScheduled,
		SubscriptionID:   r.SubscriptionID,
		CreatedAt:        &now,
		UpdatedAt:        &now,
	}
	if r.Quran != nil {
		quran := *r.Quran
		session.Quran = &quran
	}
	if r.Academic != nil {
		academic := *r.Academic
		session.Academic = &academic
	}
	if r.Interactive != nil {
		interactive := *r.Interactive
		session.Interactive = &interactive
	}
	return session
}

func validateSession(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return domain.NewValidationError(err.Error(), err)
	}
	if session.DurationMinutes > constants.MaxSessionDurationMinutes {
		return domain.NewValidationError(fmt.Sprintf("duration_minutes must not exceed %d", constants.MaxSessionDurationMinutes))
	}
	return nil
}

// CreateSession persists a new SCHEDULED session.
func (s *SchedulingService) CreateSession(ctx context.Context, academyID string, req CreateSessionRequest) (*models.Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	session := req.toSession(academyID, req.ScheduledAt, s.now())
	if err := validateSession(session); err != nil {
		return nil, err
	}
	if err := s.SessionRepository.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "session scheduled",
		"session_id", session.ID, "kind", session.Kind, "scheduled_at", session.ScheduledAt)
	return session, nil
}

// Occurrences expands rule starting at dtstart. Count overrides a COUNT in the rule when
// positive; the expansion is always capped at MaxSeriesOccurrences.
func Occurrences(rule string, dtstart time.Time, count int) ([]time.Time, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, domain.NewValidationError("invalid recurrence rule", err)
	}
	opt.Dtstart = dtstart.UTC()
	if count > 0 {
		opt.Count = count
	}
	if opt.Count == 0 && opt.Until.IsZero() {
		opt.Count = constants.MaxSeriesOccurrences
	}
	if opt.Count > constants.MaxSeriesOccurrences {
		opt.Count = constants.MaxSeriesOccurrences
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, domain.NewValidationError("invalid recurrence rule", err)
	}
	all := r.All()
	if len(all) > constants.MaxSeriesOccurrences {
		all = all[:constants.MaxSeriesOccurrences]
	}
	return all, nil
}

// ScheduleSeries creates one SCHEDULED session per occurrence of the rule. Interactive
// templates number their sessions from the template's session_number. Sessions created
// before a failure are kept; the error lists every occurrence that failed.
func (s *SchedulingService) ScheduleSeries(ctx context.Context, academyID string, req ScheduleSeriesRequest) ([]*models.Session, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	occurrences, err := Occurrences(req.RRule, req.Template.ScheduledAt, req.Count)
	if err != nil {
		return nil, err
	}
	if len(occurrences) == 0 {
		return nil, domain.NewValidationError("recurrence rule produces no occurrences")
	}

	now := s.now()
	sessions := make([]*models.Session, len(occurrences))
	for i, at := range occurrences {
		session := req.Template.toSession(academyID, at, now)
		if session.Interactive != nil {
			session.Interactive.SessionNumber += i
		}
		if err := validateSession(session); err != nil {
			return nil, err
		}
		sessions[i] = session
	}

	functions := make([]func() error, len(sessions))
	for i, session := range sessions {
		functions[i] = func() error {
			if err := s.SessionRepository.Create(ctx, session); err != nil {
				return fmt.Errorf("occurrence %s: %w", session.ScheduledAt.Format(time.RFC3339), err)
			}
			return nil
		}
	}
	errs := concurrent.NewWorkerPool(s.Config.SweepWorkers).RunAll(ctx, functions...)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		slog.ErrorContext(ctx, "failed to create part of a session series", logging.ErrKey, err,
			"occurrences", len(sessions), "failed", len(errs))
		return nil, err
	}

	slog.InfoContext(ctx, "session series scheduled", "occurrences", len(sessions),
		"first", sessions[0].ScheduledAt, "last", sessions[len(sessions)-1].ScheduledAt)
	return sessions, nil
}
