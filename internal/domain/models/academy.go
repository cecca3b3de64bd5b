// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// Defaults applied when an academy has not configured its own values.
const (
	DefaultPreparationMinutes         = 10
	DefaultLateToleranceMinutes       = 15
	DefaultBufferMinutes              = 5
	DefaultCompletionThresholdPercent = 50
	DefaultMaxParticipants            = 100
)

// AcademySettings holds the per-academy policy knobs consumed by the lifecycle engine.
type AcademySettings struct {
	AcademyID                  string `json:"academy_id"`
	Subdomain                  string `json:"subdomain"`
	PreparationMinutes         int    `json:"default_preparation_minutes"`
	LateToleranceMinutes       int    `json:"default_late_tolerance_minutes"`
	BufferMinutes              int    `json:"default_buffer_minutes"`
	CompletionThresholdPercent int    `json:"completion_threshold_percent"`
	RecordingEnabled           bool   `json:"recording_enabled"`
	MaxParticipants            int    `json:"max_participants"`
}

// DefaultAcademySettings returns the settings used for academies without a stored record.
func DefaultAcademySettings(academyID string) AcademySettings {
	return AcademySettings{
		AcademyID:                  academyID,
		Subdomain:                  academyID,
		PreparationMinutes:         DefaultPreparationMinutes,
		LateToleranceMinutes:       DefaultLateToleranceMinutes,
		BufferMinutes:              DefaultBufferMinutes,
		CompletionThresholdPercent: DefaultCompletionThresholdPercent,
		MaxParticipants:            DefaultMaxParticipants,
	}
}

// WithDefaults fills unset numeric fields with the platform defaults.
// Zero is treated as unset for every field except the recording flag.
func (a AcademySettings) WithDefaults() AcademySettings {
	d := DefaultAcademySettings(a.AcademyID)
	if a.Subdomain == "" {
		a.Subdomain = d.Subdomain
	}
	if a.PreparationMinutes <= 0 {
		a.PreparationMinutes = d.PreparationMinutes
	}
	if a.LateToleranceMinutes <= 0 {
		a.LateToleranceMinutes = d.LateToleranceMinutes
	}
	if a.BufferMinutes <= 0 {
		a.BufferMinutes = d.BufferMinutes
	}
	if a.CompletionThresholdPercent <= 0 || a.CompletionThresholdPercent > 100 {
		a.CompletionThresholdPercent = d.CompletionThresholdPercent
	}
	if a.MaxParticipants <= 0 {
		a.MaxParticipants = d.MaxParticipants
	}
	return a
}
