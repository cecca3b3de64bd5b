// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itqan-platform/session-service/internal/domain/mocks"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/store"
)

const (
	testAcademyID = "academy-1"
	testRoomName  = "QS-nour-s1-abcdefgh"
)

// scheduledAt is 10:00 UTC, the start of every seeded session.
var scheduledAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// harness wires every service against in-memory KV stores and testify mocks.
type harness struct {
	sessions      *store.NatsSessionRepository
	attendance    *store.NatsAttendanceRepository
	recordings    *store.NatsRecordingRepository
	subscriptions *store.NatsSubscriptionRepository
	settings      *store.NatsAcademySettingsRepository
	events        *store.NatsProcessedEventRepository

	provider *mocks.MockMeetingProvider
	tokens   *mocks.MockTokenIssuer
	messages *mocks.MockMessageBuilder

	attendanceService *AttendanceService
	usageService      *UsageService
	meetingService    *MeetingService
	sessionService    *SessionService
	eventService      *WebhookEventService
	scheduling        *SchedulingService

	at time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions:      store.NewNatsSessionRepository(store.NewMemoryKeyValue(store.KVStoreNameSessions)),
		attendance:    store.NewNatsAttendanceRepository(store.NewMemoryKeyValue(store.KVStoreNameAttendance)),
		recordings:    store.NewNatsRecordingRepository(store.NewMemoryKeyValue(store.KVStoreNameRecordings)),
		subscriptions: store.NewNatsSubscriptionRepository(store.NewMemoryKeyValue(store.KVStoreNameSubscriptions)),
		settings:      store.NewNatsAcademySettingsRepository(store.NewMemoryKeyValue(store.KVStoreNameAcademySettings)),
		events:        store.NewNatsProcessedEventRepository(store.NewMemoryKeyValue(store.KVStoreNameWebhookEvents)),
		provider:      &mocks.MockMeetingProvider{},
		tokens:        &mocks.MockTokenIssuer{},
		messages:      &mocks.MockMessageBuilder{},
		at:            scheduledAt,
	}
	require.NoError(t, h.settings.Put(context.Background(), &models.AcademySettings{
		AcademyID:        testAcademyID,
		Subdomain:        "nour",
		RecordingEnabled: true,
	}))

	config := ServiceConfig{RecordingOutputPath: "/recordings", SweepWorkers: 4}
	h.attendanceService = NewAttendanceService(h.sessions, h.attendance, h.settings)
	h.usageService = NewUsageService(h.sessions, h.subscriptions)
	h.meetingService = NewMeetingService(h.sessions, h.recordings, h.settings, h.provider, h.tokens, config)
	h.sessionService = NewSessionService(h.sessions, h.settings, h.attendanceService, h.usageService,
		h.meetingService, h.messages, config)
	h.eventService = NewWebhookEventService(h.sessions, h.events, h.sessionService, h.attendanceService, h.meetingService)
	h.scheduling = NewSchedulingService(h.sessions, config)

	now := func() time.Time { return h.at }
	h.attendanceService.now = now
	h.meetingService.now = now
	h.sessionService.now = now
	h.scheduling.now = now

	h.messages.On("SendSessionEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.provider.On("DeleteRoom", mock.Anything, mock.Anything).Return(nil).Maybe()
	return h
}

// seedSession stores a 60 minute quran session at 10:00 with a bound room.
func (h *harness) seedSession(t *testing.T, mutate func(*models.Session)) *models.Session {
	t.Helper()
	session := &models.Session{
		ID:               "s1",
		AcademyID:        testAcademyID,
		Kind:             models.SessionKindQuran,
		TeacherID:        "t1",
		Individual:       true,
		RecordingEnabled: true,
		ScheduledAt:      scheduledAt,
		DurationMinutes:  60,
		Status:           models.SessionStatusScheduled,
		MeetingRoomName:  testRoomName,
		SubscriptionID:   "sub-1",
		Quran:            &models.QuranDetails{CircleID: "circle-1", StudentID: "42"},
	}
	if mutate != nil {
		mutate(session)
	}
	require.NoError(t, h.sessions.Create(context.Background(), session))
	return session
}

func (h *harness) seedSubscription(t *testing.T, remaining int) {
	t.Helper()
	require.NoError(t, h.subscriptions.Put(context.Background(), &models.Subscription{
		ID:                "sub-1",
		AcademyID:         testAcademyID,
		Status:            models.SubscriptionStatusActive,
		TotalSessions:     remaining,
		RemainingSessions: remaining,
	}))
}

func (h *harness) presence(t *testing.T, eventID, identity string, role models.ParticipantRole, kind models.PresenceEventType, at time.Time) {
	t.Helper()
	_, _, err := h.attendanceService.RecordPresence(context.Background(), "s1", PresenceInput{
		EventID:  eventID,
		Identity: identity,
		Role:     role,
		Type:     kind,
		At:       at,
	})
	require.NoError(t, err)
}

func (h *harness) session(t *testing.T) *models.Session {
	t.Helper()
	session, err := h.sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	return session
}

func (h *harness) remaining(t *testing.T) int {
	t.Helper()
	sub, err := h.subscriptions.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	return sub.RemainingSessions
}

// hm is hour:minute on the day of the seeded session.
func hm(hour, minute int) time.Time {
	return time.Date(2026, 3, 1, hour, minute, 0, 0, time.UTC)
}
