// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiveKitWebhookEvent(t *testing.T) {
	received := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	t.Run("participant joined", func(t *testing.T) {
		body := []byte(`{
			"event": "participant_joined",
			"id": "EV_1",
			"createdAt": "1772359200",
			"room": {"sid": "RM_1", "name": "QS-noor-s1-abcdefgh", "numParticipants": 2},
			"participant": {"sid": "PA_1", "identity": "42_Ahmed", "name": "Ahmed",
				"metadata": "{\"role\":\"student\",\"session_id\":\"s1\"}"}
		}`)

		evt, err := ParseLiveKitWebhookEvent(body)
		require.NoError(t, err)
		msg := evt.ToMessage(received)

		assert.Equal(t, LiveKitEventParticipantJoined, msg.EventType)
		assert.Equal(t, "EV_1", msg.EventID)
		assert.Equal(t, time.Unix(1772359200, 0).UTC(), msg.Timestamp)
		assert.Equal(t, "QS-noor-s1-abcdefgh", msg.RoomName)
		assert.Equal(t, 2, msg.NumParticipants)
		assert.Equal(t, "42_Ahmed", msg.ParticipantIdentity)
		assert.Nil(t, msg.Egress)

		md := ParseParticipantMetadata(msg.ParticipantMetadata)
		assert.Equal(t, ParticipantRoleStudent, md.Role)
		assert.Equal(t, "s1", md.SessionID)
	})

	t.Run("egress ended", func(t *testing.T) {
		body := []byte(`{
			"event": "egress_ended",
			"id": "EV_2",
			"created_at": 1772359200,
			"egressInfo": {
				"egressId": "EG_1",
				"roomName": "QS-noor-s1-abcdefgh",
				"status": "EGRESS_COMPLETE",
				"endedAt": "1772361000000000000",
				"fileResults": [{"filename": "s1.mp4", "location": "s3://bucket/s1.mp4", "size": "1048576", "duration": "1800000000000"}]
			}
		}`)

		evt, err := ParseLiveKitWebhookEvent(body)
		require.NoError(t, err)
		msg := evt.ToMessage(received)

		assert.Equal(t, "QS-noor-s1-abcdefgh", msg.RoomName)
		require.NotNil(t, msg.Egress)
		assert.True(t, msg.Egress.Succeeded())
		assert.Equal(t, int64(1048576), msg.Egress.FileSize)
		assert.Equal(t, int64(1800), msg.Egress.DurationSeconds)
		assert.Equal(t, "s3://bucket/s1.mp4", msg.Egress.Location)
		assert.Equal(t, time.Unix(0, 1772361000000000000).UTC(), msg.Egress.EndedAt)
	})

	t.Run("missing timestamp falls back to receive time", func(t *testing.T) {
		evt, err := ParseLiveKitWebhookEvent([]byte(`{"event":"room_started","room":{"name":"r"}}`))
		require.NoError(t, err)
		assert.Equal(t, received, evt.Timestamp(received))
	})

	t.Run("invalid bodies", func(t *testing.T) {
		_, err := ParseLiveKitWebhookEvent([]byte(`{`))
		assert.Error(t, err)

		_, err = ParseLiveKitWebhookEvent([]byte(`{"id":"EV_1"}`))
		assert.ErrorContains(t, err, "missing event")

		_, err = ParseLiveKitWebhookEvent([]byte(`{"event":"room_started","createdAt":"soon"}`))
		assert.Error(t, err)
	})
}

func TestSupportedLiveKitEvent(t *testing.T) {
	assert.True(t, SupportedLiveKitEvent(LiveKitEventEgressEnded))
	assert.False(t, SupportedLiveKitEvent("track_published"))
}

func TestParseParticipantMetadata_Invalid(t *testing.T) {
	assert.Equal(t, ParticipantMetadata{}, ParseParticipantMetadata("not json"))
	assert.Equal(t, ParticipantMetadata{}, ParseParticipantMetadata(""))
}

func TestSessionEventAction_Subject(t *testing.T) {
	assert.Equal(t, SessionStartedSubject, SessionEventStarted.Subject())
	assert.Equal(t, SessionCancelledSubject, SessionEventCancelled.Subject())
	assert.Equal(t, "", SessionEventAction("rescheduled").Subject())
}
