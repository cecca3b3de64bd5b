// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itqan-platform/session-service/internal/service"
)

// StopRecordingResponse reports whether a stop request reached an active recording.
type StopRecordingResponse struct {
	RecordingID string `json:"recording_id"`
	Stopped     bool   `json:"stopped"`
}

// IssueToken mints a participant access token for the session's room.
func (s *SessionsAPI) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req service.ParticipantRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.meetingService.IssueToken(r.Context(), academyID(r), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, token)
}

// StartRecording starts recording the session's room.
func (s *SessionsAPI) StartRecording(w http.ResponseWriter, r *http.Request) {
	recording, err := s.meetingService.StartRecording(r.Context(), academyID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, recording)
}

// ListRecordings lists the recordings of a session.
func (s *SessionsAPI) ListRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := s.meetingService.ListRecordings(r.Context(), academyID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recordings)
}

// StopRecording stops a recording of the caller's academy. Stopping one that is no longer
// active is not an error.
func (s *SessionsAPI) StopRecording(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "recordingID")
	stopped, err := s.meetingService.StopRecording(r.Context(), academyID(r), recordingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, StopRecordingResponse{RecordingID: recordingID, Stopped: stopped})
}
