// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/akamensky/base58"
	"github.com/google/uuid"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/pkg/constants"
	"github.com/itqan-platform/session-service/pkg/utils"
)

// tokenMargin extends a token past the session's auto-complete instant.
const tokenMargin = 15 * time.Minute

// minTokenTTL is the shortest token issued, for participants joining at the very end.
const minTokenTTL = 5 * time.Minute

var identityUnsafe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// MeetingService maps sessions to provider rooms, mints participant tokens and runs
// recordings.
type MeetingService struct {
	SessionRepository         domain.SessionRepository
	RecordingRepository       domain.RecordingRepository
	AcademySettingsRepository domain.AcademySettingsRepository
	Provider                  domain.MeetingProvider
	TokenIssuer               domain.TokenIssuer
	Config                    ServiceConfig

	now clock
}

// NewMeetingService creates a new MeetingService.
func NewMeetingService(
	sessionRepository domain.SessionRepository,
	recordingRepository domain.RecordingRepository,
	academySettingsRepository domain.AcademySettingsRepository,
	provider domain.MeetingProvider,
	tokenIssuer domain.TokenIssuer,
	config ServiceConfig,
) *MeetingService {
	return &MeetingService{
		SessionRepository:         sessionRepository,
		RecordingRepository:       recordingRepository,
		AcademySettingsRepository: academySettingsRepository,
		Provider:                  provider,
		TokenIssuer:               tokenIssuer,
		Config:                    config.WithDefaults(),
		now:                       utcNow,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *MeetingService) ServiceReady() bool {
	return s.SessionRepository != nil &&
		s.RecordingRepository != nil &&
		s.Provider != nil &&
		s.TokenIssuer != nil
}

// RoomName builds "{KindPrefix}-{subdomain}-{sessionId}-{suffix}".
func RoomName(kind models.SessionKind, subdomain, sessionID, suffix string) string {
	return fmt.Sprintf("%s-%s-%s-%s", kind.RoomPrefix(), subdomain, sessionID, suffix)
}

// randomSuffix returns constants.RoomNameSuffixLength base58 characters.
func randomSuffix() (string, error) {
	buf := make([]byte, constants.RoomNameSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	encoded := base58.Encode(buf)
	for len(encoded) < constants.RoomNameSuffixLength {
		encoded += "1"
	}
	return encoded[:constants.RoomNameSuffixLength], nil
}

// CreateRoom binds a provider room to the session. When the session already has a room
// the existing handle is returned without contacting the provider. A caller that loses
// the race to bind its room deletes it and returns the winner's.
func (s *MeetingService) CreateRoom(ctx context.Context, academyID string, session *models.Session) (*domain.RoomHandle, error) {
	if session.HasRoom() {
		return &domain.RoomHandle{Name: session.MeetingRoomName, SessionID: session.ID}, nil
	}
	if session.Status.IsTerminal() {
		return nil, domain.NewIllegalTransitionError(
			fmt.Sprintf("cannot open a room for a %s session", session.Status))
	}

	settings := loadSettings(ctx, s.AcademySettingsRepository, academyID)
	suffix, err := randomSuffix()
	if err != nil {
		return nil, domain.NewInternalError("failed to generate room name", err)
	}
	name := RoomName(session.Kind, settings.Subdomain, session.ID, suffix)
	ctx = logging.WithRoom(ctx, name)

	metadata, _ := json.Marshal(map[string]string{"session_id": session.ID, "academy_id": academyID})
	sid, err := s.Provider.CreateRoom(ctx, name, domain.RoomOptions{
		EmptyTimeout:    constants.RoomEmptyTimeout,
		MaxParticipants: settings.MaxParticipants,
		Metadata:        string(metadata),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create meeting room", logging.ErrKey, err)
		return nil, err
	}

	// index first so webhooks for the room resolve as soon as it is bound
	if err := s.SessionRepository.BindRoomName(ctx, name, session.ID); err != nil {
		s.deleteOrphanRoom(ctx, name)
		return nil, err
	}
	stored, bound, err := s.SessionRepository.Mutate(ctx, session.ID, func(current *models.Session) (bool, error) {
		if current.HasRoom() {
			return false, nil
		}
		if current.Status.IsTerminal() {
			return false, domain.NewIllegalTransitionError(
				fmt.Sprintf("cannot open a room for a %s session", current.Status))
		}
		current.MeetingRoomName = name
		return true, nil
	})
	if err != nil || !bound {
		s.deleteOrphanRoom(ctx, name)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "room already bound by a concurrent caller", "bound_room", stored.MeetingRoomName)
		*session = *stored
		return &domain.RoomHandle{Name: stored.MeetingRoomName, SessionID: stored.ID}, nil
	}

	*session = *stored
	slog.InfoContext(ctx, "meeting room created", "room_sid", sid)
	return &domain.RoomHandle{Name: name, SID: sid, SessionID: session.ID, Created: true}, nil
}

func (s *MeetingService) deleteOrphanRoom(ctx context.Context, name string) {
	if err := s.Provider.DeleteRoom(ctx, name); err != nil {
		slog.WarnContext(ctx, "failed to delete orphan room", logging.ErrKey, err)
	}
}

// EndRoom closes the provider room. Closing a room that is already gone succeeds.
func (s *MeetingService) EndRoom(ctx context.Context, roomName string) error {
	if roomName == "" {
		return nil
	}
	return s.Provider.DeleteRoom(ctx, roomName)
}

// ParticipantRequest identifies who a token is minted for.
type ParticipantRequest struct {
	UserID      string                 `json:"user_id" validate:"required"`
	DisplayName string                 `json:"display_name"`
	Role        models.ParticipantRole `json:"role" validate:"required,oneof=teacher student supervisor admin"`
}

// Identity is the provider identity "{userId}_{name}".
func (p ParticipantRequest) Identity() string {
	name := strings.Trim(identityUnsafe.ReplaceAllString(p.DisplayName, "-"), "-")
	if name == "" {
		return p.UserID
	}
	return p.UserID + "_" + name
}

// IssueToken mints a fresh access token for a participant. The room is opened on demand
// once the session is ready; tokens for finished sessions are refused.
func (s *MeetingService) IssueToken(ctx context.Context, academyID, sessionID string, participant ParticipantRequest) (*domain.AccessToken, error) {
	if participant.UserID == "" || !participant.Role.Valid() {
		return nil, domain.NewValidationError("participant user id and a valid role are required")
	}
	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, domain.NewIllegalTransitionError(fmt.Sprintf("session is %s", session.Status))
	}

	settings := loadSettings(ctx, s.AcademySettingsRepository, academyID)
	window := session.Window(settings)
	now := s.now()

	if !session.HasRoom() {
		if session.Status != models.SessionStatusOngoing && !window.IsReady(now) {
			return nil, domain.NewIllegalTransitionError("the session room is not open yet")
		}
		if _, err := s.CreateRoom(ctx, academyID, session); err != nil {
			return nil, err
		}
	}

	ttl := window.AutoCompleteAt().Add(tokenMargin).Sub(now)
	ttl = max(minTokenTTL, min(ttl, s.Config.TokenTTL))

	metadata, _ := json.Marshal(models.ParticipantMetadata{Role: participant.Role, SessionID: session.ID})
	return s.TokenIssuer.IssueToken(domain.TokenRequest{
		RoomName:    session.MeetingRoomName,
		Identity:    participant.Identity(),
		DisplayName: participant.DisplayName,
		Role:        participant.Role,
		Metadata:    string(metadata),
		TTL:         ttl,
	})
}

// StartRecording starts a composite recording of the session's room. At most one
// recording may be active per session: the slot is claimed on the session before the
// provider is called and released again if the provider fails.
func (s *MeetingService) StartRecording(ctx context.Context, academyID, sessionID string) (*models.Recording, error) {
	session, err := loadSession(ctx, s.SessionRepository, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	settings := loadSettings(ctx, s.AcademySettingsRepository, academyID)
	if err := s.checkRecordable(session, settings); err != nil {
		return nil, err
	}

	now := s.now()
	recording := &models.Recording{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		AcademyID: session.AcademyID,
		RoomName:  session.MeetingRoomName,
		Status:    models.RecordingStatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	recording.FilePath = path.Join(s.Config.RecordingOutputPath, session.AcademyID,
		fmt.Sprintf("%s-%s.mp4", session.MeetingRoomName, recording.ID))
	ctx = logging.AppendCtx(ctx, slog.String("recording_id", recording.ID))

	_, _, err = s.SessionRepository.Mutate(ctx, session.ID, func(current *models.Session) (bool, error) {
		if current.ActiveRecordingID != "" {
			return false, domain.NewConflictError("session is already being recorded", domain.ErrAlreadyRecording)
		}
		if err := s.checkRecordable(current, settings); err != nil {
			return false, err
		}
		current.ActiveRecordingID = recording.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.RecordingRepository.Create(ctx, recording); err != nil {
		s.releaseRecordingSlot(ctx, session.ID, recording.ID)
		return nil, err
	}

	egressID, err := s.Provider.StartRoomRecording(ctx, session.MeetingRoomName, recording.FilePath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to start recording", logging.ErrKey, err)
		s.failRecording(ctx, recording.ID, err.Error())
		s.releaseRecordingSlot(ctx, session.ID, recording.ID)
		return nil, err
	}

	stored, _, err := s.RecordingRepository.Mutate(ctx, recording.ID, func(current *models.Recording) (bool, error) {
		if !current.Status.IsActive() {
			return false, nil
		}
		current.EgressID = egressID
		current.Status = models.RecordingStatusRecording
		current.StartedAt = utils.TimePtr(s.now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "recording started", "egress_id", egressID)
	return stored, nil
}

// checkRecordable applies the recording guards other than the single-active-recording one.
func (s *MeetingService) checkRecordable(session *models.Session, settings models.AcademySettings) error {
	if !settings.RecordingEnabled || !session.RecordingEnabled {
		return domain.NewValidationError("recording is disabled for this session", domain.ErrRecordingNotAllowed)
	}
	if !session.HasRoom() {
		return domain.NewValidationError("session has no meeting room", domain.ErrRecordingNotAllowed)
	}
	status := models.EffectiveStatus(session.Status, session.Window(settings), s.now())
	if status != models.SessionStatusOngoing && status != models.SessionStatusReady {
		return domain.NewValidationError(
			fmt.Sprintf("cannot record a %s session", status), domain.ErrRecordingNotAllowed)
	}
	return nil
}

// StopRecording asks the provider to stop the recording's egress. The recording moves to
// processing until egress_ended reports the result. It returns false when the recording
// was no longer active. Recordings of other academies read as not found.
func (s *MeetingService) StopRecording(ctx context.Context, academyID, recordingID string) (bool, error) {
	recording, err := s.RecordingRepository.Get(ctx, recordingID)
	if err != nil {
		return false, err
	}
	if recording.AcademyID != academyID {
		return false, domain.NewNotFoundError("recording not found")
	}
	return s.stopRecording(ctx, recording)
}

func (s *MeetingService) stopRecording(ctx context.Context, recording *models.Recording) (bool, error) {
	if !recording.Status.IsActive() {
		return false, nil
	}

	if recording.EgressID == "" {
		s.failRecording(ctx, recording.ID, "stopped before the egress started")
		s.releaseRecordingSlot(ctx, recording.SessionID, recording.ID)
		return true, nil
	}
	if err := s.Provider.StopRecording(ctx, recording.EgressID); err != nil {
		return false, err
	}

	_, changed, err := s.RecordingRepository.Mutate(ctx, recording.ID, func(current *models.Recording) (bool, error) {
		if current.Status != models.RecordingStatusRequested && current.Status != models.RecordingStatusRecording {
			return false, nil
		}
		current.Status = models.RecordingStatusProcessing
		return true, nil
	})
	return changed, err
}

// stopActiveRecording stops the session's active recording, if any. Failures are logged:
// recording never blocks the session lifecycle.
func (s *MeetingService) stopActiveRecording(ctx context.Context, session *models.Session) {
	if session.ActiveRecordingID == "" {
		return
	}
	if _, err := s.StopRecording(ctx, session.AcademyID, session.ActiveRecordingID); err != nil {
		slog.WarnContext(ctx, "failed to stop active recording", logging.ErrKey, err,
			"recording_id", session.ActiveRecordingID)
	}
}

// HandleEgressEnded stores the outcome reported by the provider and frees the session's
// recording slot.
func (s *MeetingService) HandleEgressEnded(ctx context.Context, egress *models.EgressResult) error {
	if egress == nil || egress.EgressID == "" {
		return domain.NewValidationError("egress id is required")
	}
	recording, err := s.RecordingRepository.GetByEgressID(ctx, egress.EgressID)
	if err != nil {
		if domain.IsNotFound(err) {
			slog.WarnContext(ctx, "egress ended for unknown recording, dropping", "egress_id", egress.EgressID)
			return nil
		}
		return err
	}

	completedAt := egress.EndedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	_, _, err = s.RecordingRepository.Mutate(ctx, recording.ID, func(current *models.Recording) (bool, error) {
		if !current.Status.IsActive() {
			return false, nil
		}
		if egress.Succeeded() {
			current.Status = models.RecordingStatusCompleted
			current.FileSize = egress.FileSize
			current.DurationSeconds = egress.DurationSeconds
			if egress.Location != "" {
				current.FilePath = egress.Location
			}
		} else {
			current.Status = models.RecordingStatusFailed
			current.Error = utils.CoalesceString(egress.Error, egress.Status)
		}
		current.CompletedAt = &completedAt
		return true, nil
	})
	if err != nil {
		return err
	}

	s.releaseRecordingSlot(ctx, recording.SessionID, recording.ID)
	slog.InfoContext(ctx, "recording finished",
		"recording_id", recording.ID, "egress_status", egress.Status, "file_size", egress.FileSize)
	return nil
}

// ListRecordings returns the recordings of a session.
func (s *MeetingService) ListRecordings(ctx context.Context, academyID, sessionID string) ([]*models.Recording, error) {
	if _, err := loadSession(ctx, s.SessionRepository, academyID, sessionID); err != nil {
		return nil, err
	}
	return s.RecordingRepository.ListBySession(ctx, sessionID)
}

func (s *MeetingService) failRecording(ctx context.Context, recordingID, reason string) {
	_, _, err := s.RecordingRepository.Mutate(ctx, recordingID, func(current *models.Recording) (bool, error) {
		if !current.Status.IsActive() {
			return false, nil
		}
		current.Status = models.RecordingStatusFailed
		current.Error = reason
		current.CompletedAt = utils.TimePtr(s.now())
		return true, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark recording as failed", logging.ErrKey, err, "recording_id", recordingID)
	}
}

func (s *MeetingService) releaseRecordingSlot(ctx context.Context, sessionID, recordingID string) {
	_, _, err := s.SessionRepository.Mutate(ctx, sessionID, func(current *models.Session) (bool, error) {
		if current.ActiveRecordingID != recordingID {
			return false, nil
		}
		current.ActiveRecordingID = ""
		return true, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to release recording slot", logging.ErrKey, err,
			"session_id", sessionID, "recording_id", recordingID)
	}
}
