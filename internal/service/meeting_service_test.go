// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
)

func TestRoomName(t *testing.T) {
	tests := []struct {
		kind     models.SessionKind
		expected string
	}{
		{models.SessionKindQuran, "QS-nour-s1-AbCdEfGh"},
		{models.SessionKindAcademic, "AS-nour-s1-AbCdEfGh"},
		{models.SessionKindInteractive, "IC-nour-s1-AbCdEfGh"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, RoomName(tt.kind, "nour", "s1", "AbCdEfGh"))
		})
	}

	a, err := randomSuffix()
	require.NoError(t, err)
	b, err := randomSuffix()
	require.NoError(t, err)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "0", "base58 has no zero")
}

func TestMeetingService_CreateRoom_Existing(t *testing.T) {
	h := newHarness(t)
	session := h.seedSession(t, nil)

	handle, err := h.meetingService.CreateRoom(context.Background(), testAcademyID, session)
	require.NoError(t, err)
	assert.Equal(t, testRoomName, handle.Name)
	assert.False(t, handle.Created)
	h.provider.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestMeetingService_CreateRoom_LosesRace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	session := h.seedSession(t, func(s *models.Session) { s.MeetingRoomName = "" })

	// another replica binds its room while this one talks to the provider
	h.provider.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		_, _, err := h.sessions.Mutate(ctx, "s1", func(current *models.Session) (bool, error) {
			current.MeetingRoomName = "QS-nour-s1-winner01"
			return true, nil
		})
		require.NoError(t, err)
	}).Return("RM_2", nil).Once()

	handle, err := h.meetingService.CreateRoom(ctx, testAcademyID, session)
	require.NoError(t, err)
	assert.Equal(t, "QS-nour-s1-winner01", handle.Name)
	assert.Equal(t, "QS-nour-s1-winner01", session.MeetingRoomName)

	h.provider.AssertCalled(t, "DeleteRoom", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "QS-nour-s1-") && name != "QS-nour-s1-winner01"
	}))
	assert.Equal(t, "QS-nour-s1-winner01", h.session(t).MeetingRoomName)
}

func TestMeetingService_IssueToken(t *testing.T) {
	ctx := context.Background()
	participant := ParticipantRequest{UserID: "42", DisplayName: "Amina Yusuf", Role: models.ParticipantRoleStudent}

	t.Run("ready session with a room", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, nil)
		h.at = hm(9, 55)
		h.tokens.On("IssueToken", mock.MatchedBy(func(req domain.TokenRequest) bool {
			return req.RoomName == testRoomName &&
				req.Identity == "42_Amina-Yusuf" &&
				req.Role == models.ParticipantRoleStudent &&
				req.TTL == 85*time.Minute &&
				strings.Contains(req.Metadata, `"role":"student"`)
		})).Return(&domain.AccessToken{Token: "jwt", RoomName: testRoomName}, nil).Once()

		token, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", participant)
		require.NoError(t, err)
		assert.Equal(t, "jwt", token.Token)
		h.tokens.AssertExpectations(t)
	})

	t.Run("opens the room on demand", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, func(s *models.Session) { s.MeetingRoomName = "" })
		h.at = hm(10, 50)
		h.provider.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Return("RM_1", nil).Once()
		h.tokens.On("IssueToken", mock.MatchedBy(func(req domain.TokenRequest) bool {
			return strings.HasPrefix(req.RoomName, "QS-nour-s1-") && req.TTL == 30*time.Minute
		})).Return(&domain.AccessToken{Token: "jwt"}, nil).Once()

		_, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", participant)
		require.NoError(t, err)
		assert.NotEmpty(t, h.session(t).MeetingRoomName)
	})

	t.Run("late joiner gets the minimum ttl", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, ongoing)
		h.at = hm(11, 30)
		h.tokens.On("IssueToken", mock.MatchedBy(func(req domain.TokenRequest) bool {
			return req.TTL == minTokenTTL
		})).Return(&domain.AccessToken{Token: "jwt"}, nil).Once()

		_, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", participant)
		require.NoError(t, err)
	})

	t.Run("room not open yet", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, func(s *models.Session) { s.MeetingRoomName = "" })
		h.at = hm(9, 0)

		_, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", participant)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
		h.provider.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("finished session", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, func(s *models.Session) { s.Status = models.SessionStatusCompleted })

		_, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", participant)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})

	t.Run("invalid participant", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.meetingService.IssueToken(ctx, testAcademyID, "s1", ParticipantRequest{UserID: "42", Role: "guest"})
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})
}

func TestParticipantRequest_Identity(t *testing.T) {
	tests := []struct {
		name     string
		req      ParticipantRequest
		expected string
	}{
		{"plain name", ParticipantRequest{UserID: "42", DisplayName: "Amina"}, "42_Amina"},
		{"spaces and symbols", ParticipantRequest{UserID: "42", DisplayName: " Amina  (Yusuf) "}, "42_Amina-Yusuf"},
		{"arabic letters are kept", ParticipantRequest{UserID: "7", DisplayName: "عمر"}, "7_عمر"},
		{"no name", ParticipantRequest{UserID: "42"}, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.req.Identity())
			assert.Equal(t, tt.req.UserID, models.ParticipantIDFromIdentity(tt.req.Identity()))
		})
	}
}

func TestMeetingService_StartRecording_Twice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.at = hm(10, 10)
	h.provider.On("StartRoomRecording", mock.Anything, testRoomName, mock.MatchedBy(func(path string) bool {
		return strings.HasPrefix(path, "/recordings/academy-1/"+testRoomName+"-") && strings.HasSuffix(path, ".mp4")
	})).Return("EG_1", nil).Once()

	first, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusRecording, first.Status)
	assert.Equal(t, "EG_1", first.EgressID)
	require.NotNil(t, first.StartedAt)

	_, err = h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyRecording)
	assert.True(t, domain.IsConflict(err))

	recordings, err := h.meetingService.ListRecordings(ctx, testAcademyID, "s1")
	require.NoError(t, err)
	active := 0
	for _, r := range recordings {
		if r.Status.IsActive() {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, first.ID, h.session(t).ActiveRecordingID)
	h.provider.AssertNumberOfCalls(t, "StartRoomRecording", 1)
}

func TestMeetingService_StartRecording_NotAllowed(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Time
		mutate func(*models.Session)
	}{
		{"disabled for the course", hm(10, 10), func(s *models.Session) { ongoing(s); s.RecordingEnabled = false }},
		{"no room", hm(10, 10), func(s *models.Session) { ongoing(s); s.MeetingRoomName = "" }},
		{"before the ready window", hm(9, 0), nil},
		{"finished session", hm(10, 10), func(s *models.Session) { s.Status = models.SessionStatusCompleted }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedSession(t, tt.mutate)
			h.at = tt.at

			_, err := h.meetingService.StartRecording(context.Background(), testAcademyID, "s1")
			assert.ErrorIs(t, err, domain.ErrRecordingNotAllowed)
			assert.Empty(t, h.session(t).ActiveRecordingID)
		})
	}
}

func TestMeetingService_StartRecording_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.at = hm(10, 10)
	h.provider.On("StartRoomRecording", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("egress unavailable")).Once()
	h.provider.On("StartRoomRecording", mock.Anything, mock.Anything, mock.Anything).
		Return("EG_2", nil).Once()

	_, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.Error(t, err)
	assert.Empty(t, h.session(t).ActiveRecordingID, "the slot is released")

	recordings, err := h.recordings.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recordings, 1)
	assert.Equal(t, models.RecordingStatusFailed, recordings[0].Status)
	assert.Equal(t, "egress unavailable", recordings[0].Error)

	retry, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "EG_2", retry.EgressID)
}

func TestMeetingService_StopRecording_AndEgressEnded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.at = hm(10, 10)
	h.provider.On("StartRoomRecording", mock.Anything, mock.Anything, mock.Anything).Return("EG_1", nil).Once()
	h.provider.On("StopRecording", mock.Anything, "EG_1").Return(nil).Once()

	recording, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.NoError(t, err)

	stopped, err := h.meetingService.StopRecording(ctx, testAcademyID, recording.ID)
	require.NoError(t, err)
	assert.True(t, stopped)

	stored, err := h.recordings.Get(ctx, recording.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusProcessing, stored.Status)
	assert.Equal(t, recording.ID, h.session(t).ActiveRecordingID, "slot is held until the egress ends")

	endedAt := hm(10, 50)
	require.NoError(t, h.meetingService.HandleEgressEnded(ctx, &models.EgressResult{
		EgressID:        "EG_1",
		Status:          models.EgressStatusComplete,
		FileSize:        1 << 20,
		DurationSeconds: 2400,
		Location:        "s3://recordings/academy-1/file.mp4",
		EndedAt:         endedAt,
	}))

	stored, err = h.recordings.Get(ctx, recording.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusCompleted, stored.Status)
	assert.Equal(t, int64(1<<20), stored.FileSize)
	assert.Equal(t, int64(2400), stored.DurationSeconds)
	assert.Equal(t, "s3://recordings/academy-1/file.mp4", stored.FilePath)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, endedAt, *stored.CompletedAt)
	assert.Empty(t, h.session(t).ActiveRecordingID)

	// stopping a finished recording is a no-op
	stopped, err = h.meetingService.StopRecording(ctx, testAcademyID, recording.ID)
	require.NoError(t, err)
	assert.False(t, stopped)
}

func TestMeetingService_StopRecording_OtherAcademy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedSession(t, ongoing)
	h.at = hm(10, 10)
	h.provider.On("StartRoomRecording", mock.Anything, mock.Anything, mock.Anything).Return("EG_1", nil).Once()

	recording, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
	require.NoError(t, err)

	stopped, err := h.meetingService.StopRecording(ctx, "academy-2", recording.ID)
	assert.True(t, domain.IsNotFound(err))
	assert.False(t, stopped)

	stored, err := h.recordings.Get(ctx, recording.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusRecording, stored.Status)
	h.provider.AssertNotCalled(t, "StopRecording", mock.Anything, mock.Anything)
}

func TestMeetingService_HandleEgressEnded(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown egress is dropped", func(t *testing.T) {
		h := newHarness(t)
		assert.NoError(t, h.meetingService.HandleEgressEnded(ctx, &models.EgressResult{EgressID: "EG_404"}))
	})

	t.Run("failed egress", func(t *testing.T) {
		h := newHarness(t)
		h.seedSession(t, ongoing)
		h.at = hm(10, 10)
		h.provider.On("StartRoomRecording", mock.Anything, mock.Anything, mock.Anything).Return("EG_1", nil).Once()

		recording, err := h.meetingService.StartRecording(ctx, testAcademyID, "s1")
		require.NoError(t, err)

		require.NoError(t, h.meetingService.HandleEgressEnded(ctx, &models.EgressResult{
			EgressID: "EG_1",
			Status:   models.EgressStatusAborted,
		}))

		stored, err := h.recordings.Get(ctx, recording.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RecordingStatusFailed, stored.Status)
		assert.Equal(t, models.EgressStatusAborted, stored.Error)
		assert.Empty(t, h.session(t).ActiveRecordingID)
	})

	t.Run("missing egress id", func(t *testing.T) {
		h := newHarness(t)
		err := h.meetingService.HandleEgressEnded(ctx, &models.EgressResult{})
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})
}
