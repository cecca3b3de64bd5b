// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/logging"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// RecordingOutputPath is the directory egress files are written to.
	RecordingOutputPath string
	// TokenTTL caps the validity of participant access tokens.
	TokenTTL time.Duration
	// SweepWorkers bounds how many sessions a sweep processes concurrently.
	SweepWorkers int
}

// Default values for [ServiceConfig] fields left unset.
const (
	DefaultRecordingOutputPath = "/recordings"
	DefaultTokenTTL            = 3 * time.Hour
	DefaultSweepWorkers        = 8
)

// WithDefaults fills unset fields.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	if c.RecordingOutputPath == "" {
		c.RecordingOutputPath = DefaultRecordingOutputPath
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.SweepWorkers <= 0 {
		c.SweepWorkers = DefaultSweepWorkers
	}
	return c
}

// clock returns the current instant. Services hold one so tests can pin time.
type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// loadSettings resolves the academy policy, falling back to the platform defaults when
// the academy has no stored record or the settings store is not wired.
func loadSettings(ctx context.Context, repo domain.AcademySettingsRepository, academyID string) models.AcademySettings {
	if repo == nil {
		return models.DefaultAcademySettings(academyID)
	}
	settings, err := repo.Get(ctx, academyID)
	if err != nil {
		if !domain.IsNotFound(err) {
			slog.WarnContext(ctx, "failed to load academy settings, using defaults",
				logging.ErrKey, err, "academy_id", academyID)
		}
		return models.DefaultAcademySettings(academyID)
	}
	return settings.WithDefaults()
}

// loadSession reads a session and checks it belongs to academyID. Sessions of another
// academy are reported as not found.
func loadSession(ctx context.Context, repo domain.SessionRepository, academyID, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, domain.NewValidationError("session id is required")
	}
	session, err := repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if academyID != "" && session.AcademyID != academyID {
		return nil, domain.NewNotFoundError("session not found")
	}
	return session, nil
}
