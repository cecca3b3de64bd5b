// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"errors"
	"fmt"
	"time"
)

// SessionKind is the teaching product a session belongs to.
type SessionKind string

const (
	SessionKindQuran       SessionKind = "quran"
	SessionKindAcademic    SessionKind = "academic"
	SessionKindInteractive SessionKind = "interactive"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	switch k {
	case SessionKindQuran, SessionKindAcademic, SessionKindInteractive:
		return true
	}
	return false
}

// RoomPrefix returns the kind prefix used in meeting room names.
func (k SessionKind) RoomPrefix() string {
	switch k {
	case SessionKindQuran:
		return "QS"
	case SessionKindAcademic:
		return "AS"
	case SessionKindInteractive:
		return "IC"
	}
	return "SS"
}

// SessionStatus is the persisted state machine status of a session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	// SessionStatusReady is normally derived at read time, see [EffectiveStatus].
	SessionStatusReady     SessionStatus = "ready"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusAbsent    SessionStatus = "absent"
)

// IsTerminal reports whether no further transitions are allowed out of s.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusAbsent
}

// IsPreStart reports whether s is SCHEDULED or READY.
func (s SessionStatus) IsPreStart() bool {
	return s == SessionStatusScheduled || s == SessionStatusReady
}

// Session is one scheduled teaching unit. Quran, academic and interactive sessions share
// every field the lifecycle engine reads; kind-specific data lives in exactly one of the
// detail payloads and is never consulted by the state machine.
type Session struct {
	ID               string      `json:"id"`
	AcademyID        string      `json:"academy_id"`
	Kind             SessionKind `json:"kind"`
	Title            string      `json:"title,omitempty"`
	TeacherID        string      `json:"teacher_id"`
	Individual       bool        `json:"individual"` // one teacher and one student
	RecordingEnabled bool        `json:"recording_enabled"`

	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`

	StartedAt             *time.Time `json:"started_at,omitempty"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`

	// MeetingRoomName is written once by the orchestrator and never changed afterwards.
	MeetingRoomName string `json:"meeting_room_name,omitempty"`

	AttendanceStatus      AttendanceStatus `json:"attendance_status,omitempty"`
	AttendanceFinalizedAt *time.Time       `json:"attendance_finalized_at,omitempty"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancelledByRole    string     `json:"cancelled_by_role,omitempty"`

	SubscriptionID      string `json:"subscription_id,omitempty"`
	SubscriptionCounted bool   `json:"subscription_counted"`

	ActiveRecordingID string `json:"active_recording_id,omitempty"`

	Quran       *QuranDetails       `json:"quran,omitempty"`
	Academic    *AcademicDetails    `json:"academic,omitempty"`
	Interactive *InteractiveDetails `json:"interactive,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// QuranDetails is the payload for quran circle sessions.
type QuranDetails struct {
	CircleID  string `json:"circle_id"`
	StudentID string `json:"student_id,omitempty"`
}

// AcademicDetails is the payload for private academic lessons.
type AcademicDetails struct {
	LessonID  string `json:"lesson_id"`
	StudentID string `json:"student_id,omitempty"`
}

// InteractiveDetails is the payload for interactive course sessions.
type InteractiveDetails struct {
	CourseID      string `json:"course_id"`
	SessionNumber int    `json:"session_number"`
}

// Window returns the time window of the session under the given academy settings.
func (s *Session) Window(settings AcademySettings) SessionWindow {
	return NewSessionWindow(s.ScheduledAt, s.DurationMinutes, settings)
}

// HasRoom reports whether a meeting room has been bound to the session.
func (s *Session) HasRoom() bool {
	return s.MeetingRoomName != ""
}

// Settled reports whether the lifecycle engine has nothing left to do for s: it was
// cancelled, or it finished with attendance finalized and usage applied.
func (s *Session) Settled() bool {
	switch s.Status {
	case SessionStatusCancelled:
		return true
	case SessionStatusCompleted, SessionStatusAbsent:
		return s.AttendanceFinalizedAt != nil && (s.SubscriptionID == "" || s.SubscriptionCounted)
	}
	return false
}

// Validate checks the fields required to persist a new session.
func (s *Session) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if s.AcademyID == "" {
		errs = append(errs, errors.New("academy_id is required"))
	}
	if !s.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown session kind %q", s.Kind))
	}
	if s.ScheduledAt.IsZero() {
		errs = append(errs, errors.New("scheduled_at is required"))
	}
	if s.DurationMinutes <= 0 {
		errs = append(errs, errors.New("duration_minutes must be positive"))
	}
	if err := s.validateDetails(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateDetails enforces that the payload matching Kind is the only one set.
func (s *Session) validateDetails() error {
	set := 0
	for _, present := range []bool{s.Quran != nil, s.Academic != nil, s.Interactive != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return errors.New("only one kind payload may be set")
	}
	switch {
	case s.Quran != nil && s.Kind != SessionKindQuran,
		s.Academic != nil && s.Kind != SessionKindAcademic,
		s.Interactive != nil && s.Kind != SessionKindInteractive:
		return fmt.Errorf("payload does not match session kind %q", s.Kind)
	}
	return nil
}

// Tags returns the labels attached to lifecycle events about the session.
func (s *Session) Tags() []string {
	tags := []string{
		fmt.Sprintf("session_id:%s", s.ID),
		fmt.Sprintf("academy_id:%s", s.AcademyID),
		fmt.Sprintf("kind:%s", s.Kind),
	}
	if s.SubscriptionID != "" {
		tags = append(tags, fmt.Sprintf("subscription_id:%s", s.SubscriptionID))
	}
	return tags
}
