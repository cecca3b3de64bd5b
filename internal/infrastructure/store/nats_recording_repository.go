// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
)

// NatsRecordingRepository is the NATS KV store repository for session recordings.
type NatsRecordingRepository struct {
	*NatsBaseRepository[models.Recording]
	keys *KeyBuilder
}

// NewNatsRecordingRepository creates a new NATS KV store repository for recordings.
func NewNatsRecordingRepository(kvStore INatsKeyValue) *NatsRecordingRepository {
	return &NatsRecordingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Recording](kvStore, "recording"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsRecordingRepository) recordingKey(recordingID string) string {
	return r.keys.EntityKeyEncoded(KeyPrefixRecording, recordingID)
}

// Create creates a new recording row
func (r *NatsRecordingRepository) Create(ctx context.Context, recording *models.Recording) error {
	if recording.ID == "" {
		return domain.NewValidationError("recording id is required")
	}
	if err := r.NatsBaseRepository.Create(ctx, r.recordingKey(recording.ID), recording); err != nil {
		return err
	}
	return r.indexEgress(ctx, recording)
}

// Get retrieves a recording by id
func (r *NatsRecordingRepository) Get(ctx context.Context, recordingID string) (*models.Recording, error) {
	return r.NatsBaseRepository.Get(ctx, r.recordingKey(recordingID))
}

// Mutate applies fn to the latest stored recording with optimistic concurrency control.
func (r *NatsRecordingRepository) Mutate(ctx context.Context, recordingID string, fn domain.RecordingMutation) (*models.Recording, bool, error) {
	recording, changed, err := r.NatsBaseRepository.Mutate(ctx, r.recordingKey(recordingID), nil,
		func(recording *models.Recording, _ bool) (bool, error) {
			changed, err := fn(recording)
			if changed && err == nil {
				recording.UpdatedAt = time.Now().UTC()
			}
			return changed, err
		})
	if err != nil || !changed {
		return recording, changed, err
	}
	return recording, true, r.indexEgress(ctx, recording)
}

// GetByEgressID resolves a provider egress id to its recording.
func (r *NatsRecordingRepository) GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error) {
	recordingID, err := r.GetIndex(ctx, r.keys.IndexKey(KeyPrefixIndexEgress, egressID))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundError("no recording for egress " + egressID)
		}
		return nil, err
	}
	return r.Get(ctx, recordingID)
}

// ListBySession returns the recordings of a session, oldest first.
func (r *NatsRecordingRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Recording, error) {
	all, err := r.ListEntitiesEncoded(ctx, r.keys.DecodedPrefix(KeyPrefixRecording), r.keys)
	if err != nil {
		return nil, err
	}
	recordings := slices.DeleteFunc(all, func(rec *models.Recording) bool {
		return rec.SessionID != sessionID
	})
	slices.SortFunc(recordings, func(a, b *models.Recording) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return recordings, nil
}

func (r *NatsRecordingRepository) indexEgress(ctx context.Context, recording *models.Recording) error {
	if recording.EgressID == "" {
		return nil
	}
	if err := r.PutIndex(ctx, r.keys.IndexKey(KeyPrefixIndexEgress, recording.EgressID), recording.ID); err != nil {
		slog.ErrorContext(ctx, "error indexing recording egress",
			logging.ErrKey, err, "recording_id", recording.ID, "egress_id", recording.EgressID)
		return err
	}
	return nil
}
