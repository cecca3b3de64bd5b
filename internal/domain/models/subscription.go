// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"slices"
	"time"
)

// SubscriptionStatus mirrors the billing system's view of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the externally owned session balance. The lifecycle engine only ever
// decrements RemainingSessions, once per counted session.
type Subscription struct {
	ID                string             `json:"id"`
	AcademyID         string             `json:"academy_id"`
	Status            SubscriptionStatus `json:"status"`
	TotalSessions     int                `json:"total_sessions"`
	RemainingSessions int                `json:"remaining_sessions"`
	// CountedSessionIDs records which sessions already consumed the balance so that the
	// check and the decrement happen in a single write.
	CountedSessionIDs []string  `json:"counted_session_ids,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasCounted reports whether sessionID already consumed a unit of the balance.
func (s *Subscription) HasCounted(sessionID string) bool {
	return slices.Contains(s.CountedSessionIDs, sessionID)
}

// Consume records sessionID and decrements the balance without going below zero.
// It returns false when the session was already counted.
func (s *Subscription) Consume(sessionID string, now time.Time) bool {
	if s.HasCounted(sessionID) {
		return false
	}
	s.CountedSessionIDs = append(s.CountedSessionIDs, sessionID)
	if s.RemainingSessions > 0 {
		s.RemainingSessions--
	}
	s.UpdatedAt = now
	return true
}
