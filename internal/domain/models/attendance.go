// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"slices"
	"strings"
	"time"
)

// AttendanceStatus is the final verdict for a participant or a session.
type AttendanceStatus string

const (
	AttendanceStatusAttended AttendanceStatus = "attended"
	AttendanceStatusLate     AttendanceStatus = "late"
	AttendanceStatusLeft     AttendanceStatus = "left"
	AttendanceStatusAbsent   AttendanceStatus = "absent"

	// AttendanceStatusPendingRecalculation is only produced on the read path when a stored
	// verdict is not one of the known values. It is never persisted.
	AttendanceStatusPendingRecalculation AttendanceStatus = "pending_recalculation"
)

// Valid reports whether s is one of the persisted verdicts.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusAttended, AttendanceStatusLate, AttendanceStatusLeft, AttendanceStatusAbsent:
		return true
	}
	return false
}

// Display returns the verdict to show readers. Unknown values surface as pending
// recalculation instead of defaulting to a misleading verdict.
func (s AttendanceStatus) Display() AttendanceStatus {
	if s == "" || s.Valid() {
		return s
	}
	return AttendanceStatusPendingRecalculation
}

// ParticipantRole controls meeting capabilities and how attendance is aggregated.
type ParticipantRole string

const (
	ParticipantRoleTeacher    ParticipantRole = "teacher"
	ParticipantRoleStudent    ParticipantRole = "student"
	ParticipantRoleSupervisor ParticipantRole = "supervisor"
	ParticipantRoleAdmin      ParticipantRole = "admin"
)

// Valid reports whether r is a known role.
func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantRoleTeacher, ParticipantRoleStudent, ParticipantRoleSupervisor, ParticipantRoleAdmin:
		return true
	}
	return false
}

// PresenceEventType is the kind of raw presence event in the ledger.
type PresenceEventType string

const (
	PresenceJoin  PresenceEventType = "join"
	PresenceLeave PresenceEventType = "leave"
)

// PresenceEvent is an append-only raw join or leave delivered by the meeting provider.
type PresenceEvent struct {
	EventID string            `json:"event_id"`
	Type    PresenceEventType `json:"type"`
	At      time.Time         `json:"at"`
}

// Interval is one stay in the room. LeftAt is nil while the participant is still inside.
type Interval struct {
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// Open reports whether the interval has not been closed yet.
func (i Interval) Open() bool {
	return i.LeftAt == nil
}

// End returns the close instant, or until when the interval is still open.
func (i Interval) End(until time.Time) time.Time {
	if i.LeftAt != nil {
		return *i.LeftAt
	}
	return until
}

// MeetingAttendance is one ledger row per (session, participant). Raw events are only ever
// appended; Intervals and the summary fields are rebuilt from them after every append.
type MeetingAttendance struct {
	SessionID     string          `json:"session_id"`
	ParticipantID string          `json:"participant_id"`
	Identity      string          `json:"identity"`
	DisplayName   string          `json:"display_name,omitempty"`
	Role          ParticipantRole `json:"role,omitempty"`

	Events    []PresenceEvent `json:"events"`
	Intervals []Interval      `json:"intervals"`

	FirstJoinTime        *time.Time `json:"first_join_time,omitempty"`
	LastLeaveTime        *time.Time `json:"last_leave_time,omitempty"`
	TotalDurationMinutes int        `json:"total_duration_minutes"`
	JoinCount            int        `json:"join_count"`
	LeaveCount           int        `json:"leave_count"`
	// IgnoredLeaves counts leave events that found no open interval.
	IgnoredLeaves int `json:"ignored_leaves"`

	IsCalculated         bool             `json:"is_calculated"`
	AttendancePercentage int              `json:"attendance_percentage"`
	AttendanceStatus     AttendanceStatus `json:"attendance_status,omitempty"`
	CalculatedAt         *time.Time       `json:"calculated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEvent reports whether the provider event id was already applied to this row.
func (a *MeetingAttendance) HasEvent(eventID string) bool {
	return slices.ContainsFunc(a.Events, func(e PresenceEvent) bool {
		return e.EventID == eventID
	})
}

// Record appends evt and rebuilds the running state. It returns false without touching
// the row when the event id was already recorded.
func (a *MeetingAttendance) Record(evt PresenceEvent) bool {
	if evt.EventID != "" && a.HasEvent(evt.EventID) {
		return false
	}
	a.Events = append(a.Events, evt)
	a.rebuild()
	return true
}

// InMeeting reports whether the participant currently has an open interval.
func (a *MeetingAttendance) InMeeting() bool {
	n := len(a.Intervals)
	return n > 0 && a.Intervals[n-1].Open()
}

// rebuild replays the events in timestamp order. A join while already inside is ignored
// (reconnect without a leave), and a leave with nothing open is a no-op close. Events
// sharing a timestamp keep the order they were recorded in, since provider timestamps
// only carry whole seconds and a reconnect often leaves and rejoins within one.
func (a *MeetingAttendance) rebuild() {
	events := slices.Clone(a.Events)
	slices.SortStableFunc(events, func(x, y PresenceEvent) int {
		return x.At.Compare(y.At)
	})

	a.Intervals = a.Intervals[:0]
	a.FirstJoinTime = nil
	a.LastLeaveTime = nil
	a.IgnoredLeaves = 0
	var closed time.Duration

	for _, e := range events {
		open := len(a.Intervals) > 0 && a.Intervals[len(a.Intervals)-1].Open()
		switch e.Type {
		case PresenceJoin:
			if open {
				continue
			}
			at := e.At
			a.Intervals = append(a.Intervals, Interval{JoinedAt: at})
			if a.FirstJoinTime == nil {
				a.FirstJoinTime = &at
			}
		case PresenceLeave:
			if !open {
				a.IgnoredLeaves++
				continue
			}
			at := e.At
			last := &a.Intervals[len(a.Intervals)-1]
			last.LeftAt = &at
			a.LastLeaveTime = &at
			closed += at.Sub(last.JoinedAt)
		}
	}

	a.JoinCount = len(a.Intervals)
	a.LeaveCount = a.JoinCount
	if a.InMeeting() {
		a.LeaveCount--
	}
	a.TotalDurationMinutes = int(closed / time.Minute)
}

// ParticipantIDFromIdentity extracts the user id from a "{userId}_{name}" identity.
// Identities without the separator are used as-is.
func ParticipantIDFromIdentity(identity string) string {
	id, _, found := strings.Cut(identity, "_")
	if !found || id == "" {
		return identity
	}
	return id
}
