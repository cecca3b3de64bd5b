// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
)

func TestAttendanceService_RecordPresence_Invalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.attendanceService.RecordPresence(ctx, "s1", PresenceInput{Type: models.PresenceJoin, At: hm(10, 0)})
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	_, _, err = h.attendanceService.RecordPresence(ctx, "s1", PresenceInput{Identity: "42_Amina", Type: "wave", At: hm(10, 0)})
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestAttendanceService_RecordPresence_KeepsFirstRole(t *testing.T) {
	h := newHarness(t)
	h.presence(t, "EV_1", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 0))
	h.presence(t, "EV_2", "42_Amina", models.ParticipantRoleTeacher, models.PresenceLeave, hm(10, 20))

	row, err := h.attendance.Get(context.Background(), "s1", "42")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantRoleStudent, row.Role)
	assert.Equal(t, "42_Amina", row.Identity)
}

func TestAttendanceService_CloseAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.presence(t, "EV_1", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 0))
	h.presence(t, "EV_2", "43_Yusuf", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 10))
	h.presence(t, "EV_3", "t1_Omar", models.ParticipantRoleTeacher, models.PresenceJoin, hm(10, 0))
	h.presence(t, "EV_4", "t1_Omar", models.ParticipantRoleTeacher, models.PresenceLeave, hm(10, 30))

	closed, err := h.attendanceService.CloseAll(ctx, "s1", "EV_close", hm(10, 40))
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	// replaying the same close is a no-op
	closed, err = h.attendanceService.CloseAll(ctx, "s1", "EV_close", hm(10, 40))
	require.NoError(t, err)
	assert.Zero(t, closed)

	yusuf, err := h.attendance.Get(ctx, "s1", "43")
	require.NoError(t, err)
	assert.False(t, yusuf.InMeeting())
	assert.Equal(t, 30, yusuf.TotalDurationMinutes)
}

func TestAttendanceService_HasJoins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	joined, err := h.attendanceService.HasJoins(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, joined)

	// a stray leave creates a row but no join
	h.presence(t, "EV_l", "42_Amina", models.ParticipantRoleStudent, models.PresenceLeave, hm(10, 10))
	joined, err = h.attendanceService.HasJoins(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, joined)

	h.presence(t, "EV_j", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 0))
	joined, err = h.attendanceService.HasJoins(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, joined)
}

func TestAttendanceService_LiveProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.presence(t, "EV_1", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 5))
	h.at = hm(10, 30)

	res, err := h.attendanceService.LiveProgress(ctx, testAcademyID, "s1", "42")
	require.NoError(t, err)
	assert.Equal(t, 25, res.TotalDurationMinutes)
	assert.Equal(t, 42, res.Percentage)
	assert.True(t, res.InMeeting)

	// nothing is persisted
	row, err := h.attendance.Get(ctx, "s1", "42")
	require.NoError(t, err)
	assert.False(t, row.IsCalculated)

	_, err = h.attendanceService.LiveProgress(ctx, testAcademyID, "s1", "99")
	assert.True(t, domain.IsNotFound(err))

	_, err = h.attendanceService.LiveProgress(ctx, "academy-2", "s1", "42")
	assert.True(t, domain.IsNotFound(err))
}

func TestAttendanceService_Report(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.presence(t, "EV_1", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 0))
	h.presence(t, "EV_2", "t1_Omar", models.ParticipantRoleTeacher, models.PresenceJoin, hm(10, 0))
	h.at = hm(10, 30)

	report, err := h.attendanceService.Report(ctx, testAcademyID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", report.SessionID)
	assert.False(t, report.Finalized)
	require.Len(t, report.Participants, 2)
	for _, p := range report.Participants {
		assert.True(t, p.InMeeting)
		require.NotNil(t, p.Live)
		assert.Equal(t, 30, p.Live.TotalDurationMinutes)
	}
}

func TestAttendanceService_Report_Finalized(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.presence(t, "EV_1", "42_Amina", models.ParticipantRoleStudent, models.PresenceJoin, hm(10, 0))
	h.presence(t, "EV_2", "42_Amina", models.ParticipantRoleStudent, models.PresenceLeave, hm(10, 55))
	h.at = hm(11, 0)

	_, err := h.sessionService.Complete(ctx, testAcademyID, "s1")
	require.NoError(t, err)

	report, err := h.attendanceService.Report(ctx, testAcademyID, "s1")
	require.NoError(t, err)
	assert.True(t, report.Finalized)
	assert.Equal(t, models.AttendanceStatusAttended, report.AttendanceStatus)
	require.Len(t, report.Participants, 1)
	assert.Nil(t, report.Participants[0].Live)
	assert.Equal(t, 92, report.Participants[0].AttendancePercentage)
}
