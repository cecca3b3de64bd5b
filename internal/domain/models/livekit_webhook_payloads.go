// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LiveKit webhook event names.
const (
	LiveKitEventRoomStarted       = "room_started"
	LiveKitEventRoomFinished      = "room_finished"
	LiveKitEventParticipantJoined = "participant_joined"
	LiveKitEventParticipantLeft   = "participant_left"
	LiveKitEventEgressEnded       = "egress_ended"
)

// Egress statuses reported by the provider.
const (
	EgressStatusComplete = "EGRESS_COMPLETE"
	EgressStatusFailed   = "EGRESS_FAILED"
	EgressStatusAborted  = "EGRESS_ABORTED"
)

// SupportedLiveKitEvent reports whether the ingestor consumes the named event.
func SupportedLiveKitEvent(event string) bool {
	switch event {
	case LiveKitEventRoomStarted, LiveKitEventRoomFinished,
		LiveKitEventParticipantJoined, LiveKitEventParticipantLeft,
		LiveKitEventEgressEnded:
		return true
	}
	return false
}

// FlexInt64 decodes integers sent either as JSON numbers or as quoted strings, which is
// how protobuf JSON encodes 64-bit fields.
type FlexInt64 int64

// UnmarshalJSON implements [json.Unmarshaler].
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", data, err)
	}
	*f = FlexInt64(v)
	return nil
}

// LiveKitWebhookEvent is the inbound webhook body.
type LiveKitWebhookEvent struct {
	Event       string              `json:"event"`
	ID          string              `json:"id"`
	CreatedAt   FlexInt64           `json:"createdAt"`
	CreatedAtV1 FlexInt64           `json:"created_at"`
	Room        *LiveKitRoom        `json:"room,omitempty"`
	Participant *LiveKitParticipant `json:"participant,omitempty"`
	EgressInfo  *LiveKitEgressInfo  `json:"egressInfo,omitempty"`
}

// LiveKitRoom is the room section of a webhook.
type LiveKitRoom struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	NumParticipants int    `json:"numParticipants"`
}

// LiveKitParticipant is the participant section of a webhook.
type LiveKitParticipant struct {
	SID      string    `json:"sid"`
	Identity string    `json:"identity"`
	Name     string    `json:"name,omitempty"`
	Metadata string    `json:"metadata,omitempty"`
	JoinedAt FlexInt64 `json:"joinedAt"`
}

// LiveKitEgressInfo is the egress section of egress_* webhooks.
type LiveKitEgressInfo struct {
	EgressID    string                  `json:"egressId"`
	RoomName    string                  `json:"roomName"`
	Status      string                  `json:"status"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   FlexInt64               `json:"startedAt"` // unix nanoseconds
	EndedAt     FlexInt64               `json:"endedAt"`   // unix nanoseconds
	FileResults []LiveKitEgressFileInfo `json:"fileResults,omitempty"`
}

// LiveKitEgressFileInfo describes one produced file.
type LiveKitEgressFileInfo struct {
	Filename string    `json:"filename"`
	Location string    `json:"location"`
	Size     FlexInt64 `json:"size"`     // bytes
	Duration FlexInt64 `json:"duration"` // nanoseconds
}

// ParseLiveKitWebhookEvent decodes a raw webhook body.
func ParseLiveKitWebhookEvent(body []byte) (*LiveKitWebhookEvent, error) {
	var evt LiveKitWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("missing event field")
	}
	return &evt, nil
}

// Timestamp returns the provider creation time of the event in UTC, falling back to
// fallback when the provider did not send one.
func (e *LiveKitWebhookEvent) Timestamp(fallback time.Time) time.Time {
	ts := e.CreatedAt
	if ts == 0 {
		ts = e.CreatedAtV1
	}
	if ts == 0 {
		return fallback.UTC()
	}
	return time.Unix(int64(ts), 0).UTC()
}

// RoomName returns the room the event refers to.
func (e *LiveKitWebhookEvent) RoomName() string {
	if e.Room != nil && e.Room.Name != "" {
		return e.Room.Name
	}
	if e.EgressInfo != nil {
		return e.EgressInfo.RoomName
	}
	return ""
}

// ToMessage normalizes the webhook into the message forwarded over NATS.
func (e *LiveKitWebhookEvent) ToMessage(receivedAt time.Time) LiveKitWebhookEventMessage {
	msg := LiveKitWebhookEventMessage{
		EventType:  e.Event,
		EventID:    e.ID,
		Timestamp:  e.Timestamp(receivedAt),
		RoomName:   e.RoomName(),
		ReceivedAt: receivedAt.UTC(),
	}
	if e.Room != nil {
		msg.RoomSID = e.Room.SID
		msg.NumParticipants = e.Room.NumParticipants
	}
	if e.Participant != nil {
		msg.ParticipantIdentity = e.Participant.Identity
		msg.ParticipantName = e.Participant.Name
		msg.ParticipantMetadata = e.Participant.Metadata
	}
	if e.EgressInfo != nil {
		msg.Egress = e.EgressInfo.toResult()
	}
	return msg
}

func (i *LiveKitEgressInfo) toResult() *EgressResult {
	res := &EgressResult{
		EgressID: i.EgressID,
		RoomName: i.RoomName,
		Status:   i.Status,
		Error:    i.Error,
	}
	if i.EndedAt > 0 {
		res.EndedAt = time.Unix(0, int64(i.EndedAt)).UTC()
	}
	for _, f := range i.FileResults {
		res.FileSize += int64(f.Size)
		res.DurationSeconds += int64(time.Duration(f.Duration) / time.Second)
		if res.Location == "" {
			res.Location = f.Location
		}
	}
	return res
}

// ParticipantMetadata is the JSON metadata embedded in access tokens and echoed back
// by the provider on participant webhooks.
type ParticipantMetadata struct {
	Role      ParticipantRole `json:"role"`
	SessionID string          `json:"session_id,omitempty"`
}

// ParseParticipantMetadata decodes metadata, returning the zero value when absent or invalid.
func ParseParticipantMetadata(raw string) ParticipantMetadata {
	var md ParticipantMetadata
	if raw == "" {
		return md
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return ParticipantMetadata{}
	}
	return md
}
