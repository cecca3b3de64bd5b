// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// WindowPhase is the position of an instant relative to a session's time window.
type WindowPhase string

const (
	WindowPhaseUpcoming   WindowPhase = "upcoming"    // before preparation starts
	WindowPhasePreparing  WindowPhase = "preparing"   // preparation window, before scheduled_at
	WindowPhaseInProgress WindowPhase = "in_progress" // between scheduled_at and the scheduled end
	WindowPhaseBuffer     WindowPhase = "buffer"      // grace period after the scheduled end
	WindowPhaseElapsed    WindowPhase = "elapsed"     // past the auto-complete instant
)

// SessionWindow centralizes every time-based classification of a session. The sweep,
// the read path and the state machine guards all go through it.
type SessionWindow struct {
	ScheduledAt time.Time
	Duration    time.Duration
	Preparation time.Duration
	Buffer      time.Duration
}

// NewSessionWindow builds a window from a schedule and academy settings.
func NewSessionWindow(scheduledAt time.Time, durationMinutes int, settings AcademySettings) SessionWindow {
	settings = settings.WithDefaults()
	return SessionWindow{
		ScheduledAt: scheduledAt,
		Duration:    time.Duration(durationMinutes) * time.Minute,
		Preparation: time.Duration(settings.PreparationMinutes) * time.Minute,
		Buffer:      time.Duration(settings.BufferMinutes) * time.Minute,
	}
}

// PreparationStart is the instant from which the room may be opened.
func (w SessionWindow) PreparationStart() time.Time {
	return w.ScheduledAt.Add(-w.Preparation)
}

// ScheduledEnd is scheduled_at plus the planned duration.
func (w SessionWindow) ScheduledEnd() time.Time {
	return w.ScheduledAt.Add(w.Duration)
}

// AutoCompleteAt is the instant after which the sweep forces a terminal status.
func (w SessionWindow) AutoCompleteAt() time.Time {
	return w.ScheduledEnd().Add(w.Buffer)
}

// IsReady reports whether now falls in [scheduled_at - preparation, scheduled_end).
func (w SessionWindow) IsReady(now time.Time) bool {
	return !now.Before(w.PreparationStart()) && now.Before(w.ScheduledEnd())
}

// IsActive reports whether a session may be started at now. It shares the ready window.
func (w SessionWindow) IsActive(now time.Time) bool {
	return w.IsReady(now)
}

// IsOverdue reports whether the window, including the buffer, has fully elapsed.
func (w SessionWindow) IsOverdue(now time.Time) bool {
	return !now.Before(w.AutoCompleteAt())
}

// Phase classifies now against the window.
func (w SessionWindow) Phase(now time.Time) WindowPhase {
	switch {
	case now.Before(w.PreparationStart()):
		return WindowPhaseUpcoming
	case now.Before(w.ScheduledAt):
		return WindowPhasePreparing
	case now.Before(w.ScheduledEnd()):
		return WindowPhaseInProgress
	case now.Before(w.AutoCompleteAt()):
		return WindowPhaseBuffer
	}
	return WindowPhaseElapsed
}

// EffectiveStatus is the status shown to readers: a persisted SCHEDULED session inside
// its ready window reads as READY. Every other status is returned unchanged.
func EffectiveStatus(status SessionStatus, w SessionWindow, now time.Time) SessionStatus {
	if status == SessionStatusScheduled && w.IsReady(now) {
		return SessionStatusReady
	}
	return status
}
