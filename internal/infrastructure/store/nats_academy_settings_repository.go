// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
)

// NatsAcademySettingsRepository is the NATS KV store repository for academy settings.
type NatsAcademySettingsRepository struct {
	*NatsBaseRepository[models.AcademySettings]
	keys *KeyBuilder
}

// NewNatsAcademySettingsRepository creates a new NATS KV store repository for academy settings.
func NewNatsAcademySettingsRepository(kvStore INatsKeyValue) *NatsAcademySettingsRepository {
	return &NatsAcademySettingsRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.AcademySettings](kvStore, "academy settings"),
		keys:               NewKeyBuilder(""),
	}
}

// Get retrieves the stored settings of an academy
func (r *NatsAcademySettingsRepository) Get(ctx context.Context, academyID string) (*models.AcademySettings, error) {
	return r.NatsBaseRepository.Get(ctx, r.keys.EntityKeyEncoded(KeyPrefixAcademy, academyID))
}

// Put stores the settings of an academy
func (r *NatsAcademySettingsRepository) Put(ctx context.Context, settings *models.AcademySettings) error {
	if settings.AcademyID == "" {
		return domain.NewValidationError("academy id is required")
	}
	return r.NatsBaseRepository.Put(ctx, r.keys.EntityKeyEncoded(KeyPrefixAcademy, settings.AcademyID), settings)
}
