// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// RecordingStatus is the lifecycle status of a provider-side recording (egress).
type RecordingStatus string

const (
	RecordingStatusRequested  RecordingStatus = "requested"
	RecordingStatusRecording  RecordingStatus = "recording"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

// IsActive reports whether the recording still holds the per-session recording slot.
func (s RecordingStatus) IsActive() bool {
	return s == RecordingStatusRequested || s == RecordingStatusRecording || s == RecordingStatusProcessing
}

// Recording represents one egress job bound to a session's room.
type Recording struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	AcademyID       string          `json:"academy_id"`
	RoomName        string          `json:"room_name"`
	EgressID        string          `json:"egress_id,omitempty"`
	Status          RecordingStatus `json:"status"`
	FilePath        string          `json:"file_path,omitempty"`
	FileSize        int64           `json:"file_size"`        // bytes
	DurationSeconds int64           `json:"duration_seconds"` // reported by the provider
	Error           string          `json:"error,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
