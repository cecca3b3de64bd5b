// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/concurrent"
)

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepCompleted
	sweepAbsent
	sweepRefinished
)

// Sweep finishes overdue sessions and repairs finished sessions whose attendance or usage
// was never written.
//
// ONGOING and pre-start sessions past their auto-complete instant are completed when
// somebody joined and marked absent otherwise. COMPLETED or ABSENT sessions without
// attendance_finalized_at are finalized again, and those finalized but never counted get
// their usage applied.
func (s *SessionService) Sweep(ctx context.Context) (models.SweepResult, error) {
	var result models.SweepResult
	if err := s.ready(ctx); err != nil {
		return result, err
	}

	sessions, err := s.SessionRepository.ListUnsettled(ctx)
	if err != nil {
		return result, err
	}

	var mu sync.Mutex
	var functions []func() error
	for _, session := range sessions {
		if !s.needsSweep(ctx, session) {
			continue
		}
		functions = append(functions, func() error {
			sctx := logging.WithSession(ctx, session.ID, session.MeetingRoomName)
			outcome, err := s.sweepSession(sctx, session)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				slog.ErrorContext(sctx, "failed to sweep session", logging.ErrKey, err)
				return nil
			}
			switch outcome {
			case sweepCompleted:
				result.Completed++
			case sweepAbsent:
				result.Absent++
			case sweepRefinished:
				result.Refinished++
			}
			return nil
		})
	}

	concurrent.NewWorkerPool(s.Config.SweepWorkers).RunAll(ctx, functions...)
	slog.InfoContext(ctx, "sweep finished",
		"candidates", len(functions),
		"completed", result.Completed,
		"absent", result.Absent,
		"refinished", result.Refinished,
		"failed", result.Failed)
	return result, nil
}

func (s *SessionService) needsSweep(ctx context.Context, session *models.Session) bool {
	if isFinished(session.Status) {
		return session.AttendanceFinalizedAt == nil ||
			(session.SubscriptionID != "" && !session.SubscriptionCounted)
	}
	settings := loadSettings(ctx, s.AcademySettingsRepository, session.AcademyID)
	return session.Window(settings).IsOverdue(s.now())
}

func (s *SessionService) sweepSession(ctx context.Context, session *models.Session) (sweepOutcome, error) {
	if isFinished(session.Status) {
		if session.AttendanceFinalizedAt == nil {
			slog.InfoContext(ctx, "re-finalizing session attendance")
			s.finalize(ctx, session)
			return sweepRefinished, nil
		}
		applied, err := s.UsageService.ApplyUsage(ctx, session.ID)
		if err != nil {
			return sweepSkipped, err
		}
		if applied {
			return sweepRefinished, nil
		}
		return sweepSkipped, nil
	}

	joined, err := s.AttendanceService.HasJoins(ctx, session.ID)
	if err != nil {
		return sweepSkipped, err
	}
	if !joined {
		stored, err := s.markAbsent(ctx, session.ID)
		if err != nil {
			return sweepSkipped, err
		}
		if stored.AttendanceStatus != models.AttendanceStatusAbsent {
			return sweepSkipped, nil
		}
		return sweepAbsent, nil
	}

	if _, err := s.complete(ctx, session.ID, true); err != nil {
		return sweepSkipped, err
	}
	return sweepCompleted, nil
}
