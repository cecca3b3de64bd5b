// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/itqan-platform/session-service/internal/domain"
)

// ProcessedEventTTL is how long processed provider event ids are remembered. The bucket
// is created with this TTL so markers expire on their own.
const ProcessedEventTTL = 24 * time.Hour

type processedEvent struct {
	EventID     string    `json:"event_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NatsProcessedEventRepository remembers webhook event ids that were fully applied.
type NatsProcessedEventRepository struct {
	*NatsBaseRepository[processedEvent]
	keys *KeyBuilder
}

// NewNatsProcessedEventRepository creates a new NATS KV store repository for processed events.
func NewNatsProcessedEventRepository(kvStore INatsKeyValue) *NatsProcessedEventRepository {
	return &NatsProcessedEventRepository{
		NatsBaseRepository: NewNatsBaseRepository[processedEvent](kvStore, "webhook event"),
		keys:               NewKeyBuilder(""),
	}
}

// IsProcessed reports whether eventID was marked as processed
func (r *NatsProcessedEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return r.Exists(ctx, r.keys.EntityKeyEncoded(KeyPrefixEvent, eventID))
}

// MarkProcessed records eventID. Marking an already processed event is not an error.
func (r *NatsProcessedEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	err := r.Create(ctx, r.keys.EntityKeyEncoded(KeyPrefixEvent, eventID), &processedEvent{
		EventID:     eventID,
		ProcessedAt: time.Now().UTC(),
	})
	if domain.IsConflict(err) {
		return nil
	}
	return err
}
