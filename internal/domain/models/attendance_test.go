// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func join(id string, minute int) PresenceEvent {
	return PresenceEvent{EventID: id, Type: PresenceJoin, At: t0.Add(time.Duration(minute) * time.Minute)}
}

func leave(id string, minute int) PresenceEvent {
	return PresenceEvent{EventID: id, Type: PresenceLeave, At: t0.Add(time.Duration(minute) * time.Minute)}
}

func TestMeetingAttendance_Record(t *testing.T) {
	t.Run("join and leave", func(t *testing.T) {
		var a MeetingAttendance
		require.True(t, a.Record(join("j1", 2)))
		assert.True(t, a.InMeeting())
		require.True(t, a.Record(leave("l1", 40)))

		assert.False(t, a.InMeeting())
		assert.Equal(t, 38, a.TotalDurationMinutes)
		assert.Equal(t, 1, a.JoinCount)
		assert.Equal(t, 1, a.LeaveCount)
		assert.Equal(t, t0.Add(2*time.Minute), *a.FirstJoinTime)
		assert.Equal(t, t0.Add(40*time.Minute), *a.LastLeaveTime)
	})

	t.Run("duplicate event id is a no-op", func(t *testing.T) {
		var a MeetingAttendance
		require.True(t, a.Record(join("j1", 0)))
		assert.False(t, a.Record(join("j1", 0)))
		assert.Len(t, a.Events, 1)
		assert.Equal(t, 1, a.JoinCount)
	})

	t.Run("reconnect without leave keeps one open interval", func(t *testing.T) {
		var a MeetingAttendance
		a.Record(join("j1", 0))
		a.Record(join("j2", 5))
		a.Record(leave("l1", 20))

		require.Len(t, a.Intervals, 1)
		assert.Equal(t, 20, a.TotalDurationMinutes)
	})

	t.Run("leave without open interval is counted and ignored", func(t *testing.T) {
		var a MeetingAttendance
		a.Record(leave("l0", 1))
		a.Record(join("j1", 5))

		assert.Equal(t, 1, a.IgnoredLeaves)
		assert.True(t, a.InMeeting())
		assert.Equal(t, 0, a.TotalDurationMinutes)
	})

	t.Run("out of order delivery converges", func(t *testing.T) {
		inOrder := []PresenceEvent{join("j1", 0), leave("l1", 10), join("j2", 15), leave("l2", 40)}
		shuffled := []PresenceEvent{leave("l2", 40), join("j2", 15), leave("l1", 10), join("j1", 0)}

		var a, b MeetingAttendance
		for _, e := range inOrder {
			a.Record(e)
		}
		for _, e := range shuffled {
			b.Record(e)
		}

		assert.Equal(t, a.Intervals, b.Intervals)
		assert.Equal(t, 35, b.TotalDurationMinutes)
		assert.Equal(t, 2, b.JoinCount)
		assert.Equal(t, 0, b.IgnoredLeaves)
	})

	t.Run("leave and rejoin within the same second", func(t *testing.T) {
		var a MeetingAttendance
		a.Record(join("j1", 0))
		a.Record(leave("l1", 30))
		a.Record(join("j2", 30))

		require.Len(t, a.Intervals, 2)
		assert.True(t, a.InMeeting())
		assert.Equal(t, 2, a.JoinCount)
		assert.Equal(t, 1, a.LeaveCount)
		assert.Equal(t, 30, a.TotalDurationMinutes)
		assert.Equal(t, 0, a.IgnoredLeaves)

		a.Record(leave("l2", 60))
		assert.False(t, a.InMeeting())
		assert.Equal(t, 60, a.TotalDurationMinutes)
	})

	t.Run("join and leave within the same second", func(t *testing.T) {
		var a MeetingAttendance
		a.Record(join("j1", 5))
		a.Record(leave("l1", 5))

		require.Len(t, a.Intervals, 1)
		assert.False(t, a.InMeeting())
		assert.Equal(t, 0, a.IgnoredLeaves)
	})
}

func TestAttendanceStatus_Display(t *testing.T) {
	assert.Equal(t, AttendanceStatusLate, AttendanceStatusLate.Display())
	assert.Equal(t, AttendanceStatus(""), AttendanceStatus("").Display())
	assert.Equal(t, AttendanceStatusPendingRecalculation, AttendanceStatus("partial").Display())
}

func TestParticipantIDFromIdentity(t *testing.T) {
	tests := map[string]string{
		"42_Ahmed Ali": "42",
		"42":           "42",
		"_anonymous":   "_anonymous",
		"7_a_b":        "7",
	}
	for identity, want := range tests {
		assert.Equal(t, want, ParticipantIDFromIdentity(identity), identity)
	}
}

func TestSubscription_Consume(t *testing.T) {
	now := time.Now()
	sub := Subscription{ID: "sub-1", RemainingSessions: 1}

	assert.True(t, sub.Consume("s1", now))
	assert.Equal(t, 0, sub.RemainingSessions)
	assert.False(t, sub.Consume("s1", now))
	assert.True(t, sub.Consume("s2", now))
	assert.Equal(t, 0, sub.RemainingSessions)
	assert.Equal(t, []string{"s1", "s2"}, sub.CountedSessionIDs)
}
