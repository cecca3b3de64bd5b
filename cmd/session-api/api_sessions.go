// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/auth"
	"github.com/itqan-platform/session-service/internal/service"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// CreateSession schedules a single session.
func (s *SessionsAPI) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.schedulingService.CreateSession(r.Context(), academyID(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, session)
}

// ScheduleSeries creates one session per occurrence of a recurrence rule.
func (s *SessionsAPI) ScheduleSeries(w http.ResponseWriter, r *http.Request) {
	var req service.ScheduleSeriesRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sessions, err := s.schedulingService.ScheduleSeries(r.Context(), academyID(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sessions)
}

// GetSession returns a session with its effective status.
func (s *SessionsAPI) GetSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.sessionService.Get)
}

// StartSession moves a session to ONGOING.
func (s *SessionsAPI) StartSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.sessionService.Start)
}

// CompleteSession finishes a session and finalizes its attendance.
func (s *SessionsAPI) CompleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.sessionService.Complete)
}

// MarkSessionAbsent finishes a session nobody attended.
func (s *SessionsAPI) MarkSessionAbsent(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.sessionService.MarkAbsent)
}

// CancelSession cancels a session. The actor defaults to the authenticated principal.
func (s *SessionsAPI) CancelSession(w http.ResponseWriter, r *http.Request) {
	var req service.CancelRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ActorID == "" {
		req.ActorID = auth.PrincipalFromContext(r.Context())
	}
	if req.ActorRole == "" {
		req.ActorRole = r.Header.Get(constants.ParticipantRoleHeader)
	}

	session, err := s.sessionService.Cancel(r.Context(), academyID(r), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

func (s *SessionsAPI) sessionAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, academyID, sessionID string) (*models.Session, error),
) {
	session, err := action(r.Context(), academyID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}
