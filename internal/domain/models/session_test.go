// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Validate(t *testing.T) {
	valid := func() *Session {
		return &Session{
			ID:              "s1",
			AcademyID:       "academy-1",
			Kind:            SessionKindQuran,
			ScheduledAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			DurationMinutes: 30,
			Quran:           &QuranDetails{CircleID: "c1"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Session)
		wantErr string
	}{
		{name: "valid", mutate: func(*Session) {}},
		{name: "missing id", mutate: func(s *Session) { s.ID = "" }, wantErr: "id is required"},
		{name: "unknown kind", mutate: func(s *Session) { s.Kind = "circle" }, wantErr: "unknown session kind"},
		{name: "zero duration", mutate: func(s *Session) { s.DurationMinutes = 0 }, wantErr: "duration_minutes"},
		{
			name:    "payload for another kind",
			mutate:  func(s *Session) { s.Quran = nil; s.Academic = &AcademicDetails{LessonID: "l1"} },
			wantErr: "payload does not match",
		},
		{
			name:    "two payloads",
			mutate:  func(s *Session) { s.Interactive = &InteractiveDetails{CourseID: "c1"} },
			wantErr: "only one kind payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSessionKind_RoomPrefix(t *testing.T) {
	assert.Equal(t, "QS", SessionKindQuran.RoomPrefix())
	assert.Equal(t, "AS", SessionKindAcademic.RoomPrefix())
	assert.Equal(t, "IC", SessionKindInteractive.RoomPrefix())
}

func TestSessionStatus_Classification(t *testing.T) {
	assert.True(t, SessionStatusCompleted.IsTerminal())
	assert.True(t, SessionStatusCancelled.IsTerminal())
	assert.True(t, SessionStatusAbsent.IsTerminal())
	assert.False(t, SessionStatusOngoing.IsTerminal())
	assert.True(t, SessionStatusReady.IsPreStart())
	assert.False(t, SessionStatusOngoing.IsPreStart())
}

func TestSession_Tags(t *testing.T) {
	s := &Session{ID: "s1", AcademyID: "a1", Kind: SessionKindAcademic, SubscriptionID: "sub-1"}
	assert.Equal(t, []string{
		"session_id:s1", "academy_id:a1", "kind:academic", "subscription_id:sub-1",
	}, s.Tags())
}

func TestSession_Settled(t *testing.T) {
	finalized := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"scheduled", Session{Status: SessionStatusScheduled}, false},
		{"ongoing", Session{Status: SessionStatusOngoing}, false},
		{"cancelled", Session{Status: SessionStatusCancelled, SubscriptionID: "sub-1"}, true},
		{"completed without attendance", Session{Status: SessionStatusCompleted}, false},
		{"completed without subscription", Session{Status: SessionStatusCompleted, AttendanceFinalizedAt: &finalized}, true},
		{"absent not counted", Session{Status: SessionStatusAbsent, AttendanceFinalizedAt: &finalized, SubscriptionID: "sub-1"}, false},
		{"absent counted", Session{Status: SessionStatusAbsent, AttendanceFinalizedAt: &finalized, SubscriptionID: "sub-1", SubscriptionCounted: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Settled())
		})
	}
}
