// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetAttendance returns the attendance ledger of a session.
func (s *SessionsAPI) GetAttendance(w http.ResponseWriter, r *http.Request) {
	report, err := s.attendanceService.Report(r.Context(), academyID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// GetParticipantAttendance returns the live attendance of one participant.
func (s *SessionsAPI) GetParticipantAttendance(w http.ResponseWriter, r *http.Request) {
	progress, err := s.attendanceService.LiveProgress(r.Context(), academyID(r),
		chi.URLParam(r, "sessionID"), chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// GetSubscription returns a subscription balance.
func (s *SessionsAPI) GetSubscription(w http.ResponseWriter, r *http.Request) {
	subscription, err := s.usageService.GetSubscription(r.Context(), academyID(r), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, subscription)
}
