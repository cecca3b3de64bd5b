// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/internal/service"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// maxRequestBodyBytes caps JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// SessionsAPI serves the session HTTP API.
type SessionsAPI struct {
	sessionService    *service.SessionService
	schedulingService *service.SchedulingService
	meetingService    *service.MeetingService
	attendanceService *service.AttendanceService
	usageService      *service.UsageService
	webhookService    *service.LiveKitWebhookService

	validate *validator.Validate
}

// NewSessionsAPI creates a new SessionsAPI.
func NewSessionsAPI(
	sessionService *service.SessionService,
	schedulingService *service.SchedulingService,
	meetingService *service.MeetingService,
	attendanceService *service.AttendanceService,
	usageService *service.UsageService,
	webhookService *service.LiveKitWebhookService,
) *SessionsAPI {
	return &SessionsAPI{
		sessionService:    sessionService,
		schedulingService: schedulingService,
		meetingService:    meetingService,
		attendanceService: attendanceService,
		usageService:      usageService,
		webhookService:    webhookService,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Readyz checks if the service is able to take inbound requests.
func (s *SessionsAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := s.sessionService.ServiceReady() &&
		s.schedulingService.ServiceReady() &&
		s.meetingService.ServiceReady() &&
		s.webhookService.ServiceReady()
	if !ready {
		writeError(w, r, domain.ErrServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("OK\n"))
}

// Livez checks if the service is alive.
func (s *SessionsAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}

// statusCode maps a service error to its HTTP status.
func statusCode(err error) int {
	if errors.Is(err, domain.ErrInvalidWebhookSignature) {
		return http.StatusUnauthorized
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorTypeIllegalTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", logging.ErrKey, err)
		message = http.StatusText(code)
	}
	writeJSON(w, r, code, ErrorResponse{Code: strconv.Itoa(code), Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "failed to encode response", logging.ErrKey, err)
	}
}

// decodeRequest reads a JSON body into v and validates it. An empty body decodes to
// the zero value before validation.
func (s *SessionsAPI) decodeRequest(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("invalid request body", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return domain.NewValidationError(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// academyID returns the tenant of the request set by [academyScope].
func academyID(r *http.Request) string {
	id, _ := r.Context().Value(constants.AcademyIDContextID).(string)
	return id
}
