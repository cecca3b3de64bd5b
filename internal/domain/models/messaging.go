// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS wildcard subjects that the session service handles messages about.
const (
	// SessionServiceQueue is the queue group shared by all session service replicas.
	// The subject is of the form: itqan.session-service.queue
	SessionServiceQueue = "itqan.session-service.queue"

	// LiveKitWebhookSubjectPrefix prefixes every normalized provider event.
	// The subject is of the form: itqan.session.webhook.livekit.<event>
	LiveKitWebhookSubjectPrefix = "itqan.session.webhook.livekit."

	// LiveKitWebhookWildcardSubject matches every normalized provider event.
	LiveKitWebhookWildcardSubject = LiveKitWebhookSubjectPrefix + "*"
)

// NATS specific subjects that the session service handles messages about.
const (
	// LiveKit webhook event subjects - mirrors the provider event names
	LiveKitWebhookRoomStartedSubject       = LiveKitWebhookSubjectPrefix + LiveKitEventRoomStarted
	LiveKitWebhookRoomFinishedSubject      = LiveKitWebhookSubjectPrefix + LiveKitEventRoomFinished
	LiveKitWebhookParticipantJoinedSubject = LiveKitWebhookSubjectPrefix + LiveKitEventParticipantJoined
	LiveKitWebhookParticipantLeftSubject   = LiveKitWebhookSubjectPrefix + LiveKitEventParticipantLeft
	LiveKitWebhookEgressEndedSubject       = LiveKitWebhookSubjectPrefix + LiveKitEventEgressEnded

	// SessionSweepSubject triggers an overdue-session sweep. A scheduler publishes to it
	// periodically; replies carry a [SweepResult].
	// The subject is of the form: itqan.session.sweep
	SessionSweepSubject = "itqan.session.sweep"

	// SessionGetSubject returns a session by id over request/reply.
	// The subject is of the form: itqan.session.get
	SessionGetSubject = "itqan.session.get"
)

// NATS subjects that the session service publishes lifecycle events on.
const (
	SessionStartedSubject   = "itqan.session.started"
	SessionCompletedSubject = "itqan.session.completed"
	SessionAbsentSubject    = "itqan.session.absent"
	SessionCancelledSubject = "itqan.session.cancelled"
)

// SessionEventAction is the lifecycle transition a [SessionEventMessage] reports.
type SessionEventAction string

const (
	SessionEventStarted   SessionEventAction = "started"
	SessionEventCompleted SessionEventAction = "completed"
	SessionEventAbsent    SessionEventAction = "absent"
	SessionEventCancelled SessionEventAction = "cancelled"
)

// Subject returns the NATS subject an action is published on.
func (a SessionEventAction) Subject() string {
	switch a {
	case SessionEventStarted:
		return SessionStartedSubject
	case SessionEventCompleted:
		return SessionCompletedSubject
	case SessionEventAbsent:
		return SessionAbsentSubject
	case SessionEventCancelled:
		return SessionCancelledSubject
	}
	return ""
}

// SessionEventMessage is the schema of lifecycle events consumed by downstream services
// (notifications, reporting, billing dashboards).
type SessionEventMessage struct {
	Action  SessionEventAction `json:"action"`
	Headers map[string]string  `json:"headers"`
	Data    any                `json:"data"`
	// Tags are labels consumers can filter on.
	Tags []string `json:"tags"`
}

// LiveKitWebhookEventMessage is the normalized provider event forwarded over NATS for
// asynchronous processing. It is msgpack encoded on the wire.
type LiveKitWebhookEventMessage struct {
	EventType string    `msgpack:"event_type"`
	EventID   string    `msgpack:"event_id"`
	Timestamp time.Time `msgpack:"timestamp"`

	RoomName        string `msgpack:"room_name"`
	RoomSID         string `msgpack:"room_sid,omitempty"`
	NumParticipants int    `msgpack:"num_participants"`

	ParticipantIdentity string `msgpack:"participant_identity,omitempty"`
	ParticipantName     string `msgpack:"participant_name,omitempty"`
	ParticipantMetadata string `msgpack:"participant_metadata,omitempty"`

	Egress *EgressResult `msgpack:"egress,omitempty"`

	ReceivedAt time.Time `msgpack:"received_at"`
}

// EgressResult is the outcome of a recording job as reported by egress_ended.
type EgressResult struct {
	EgressID        string    `msgpack:"egress_id"`
	RoomName        string    `msgpack:"room_name"`
	Status          string    `msgpack:"status"`
	Error           string    `msgpack:"error,omitempty"`
	FileSize        int64     `msgpack:"file_size"`
	DurationSeconds int64     `msgpack:"duration_seconds"`
	Location        string    `msgpack:"location,omitempty"`
	EndedAt         time.Time `msgpack:"ended_at"`
}

// Succeeded reports whether the egress finished with a usable file.
func (e *EgressResult) Succeeded() bool {
	return e.Status == EgressStatusComplete
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Completed  int `json:"completed"`
	Absent     int `json:"absent"`
	Refinished int `json:"refinished"`
	Failed     int `json:"failed"`
}
