// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Meeting room constraints
const (
	// RoomEmptyTimeout is how long the provider keeps an empty room open
	RoomEmptyTimeout = 300 * time.Second

	// RoomNameSuffixLength is the length of the random suffix of generated room names
	RoomNameSuffixLength = 8

	// MaxSessionDurationMinutes is the maximum planned duration of a session in minutes
	MaxSessionDurationMinutes = 600

	// MaxSeriesOccurrences bounds the sessions created from a single recurrence rule
	MaxSeriesOccurrences = 200
)
