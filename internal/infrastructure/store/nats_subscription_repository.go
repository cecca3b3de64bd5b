// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// NatsSubscriptionRepository is the NATS KV backed subscription balance. The counted
// session ids live on the subscription record itself, so the "already counted" check and
// the decrement are one revision-checked write.
type NatsSubscriptionRepository struct {
	*NatsBaseRepository[models.Subscription]
	keys *KeyBuilder
}

// NewNatsSubscriptionRepository creates a new NATS KV store repository for subscriptions.
func NewNatsSubscriptionRepository(kvStore INatsKeyValue) *NatsSubscriptionRepository {
	return &NatsSubscriptionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Subscription](kvStore, "subscription"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsSubscriptionRepository) subscriptionKey(subscriptionID string) string {
	return r.keys.EntityKeyEncoded(KeyPrefixSubscription, subscriptionID)
}

// Get retrieves a subscription by id
func (r *NatsSubscriptionRepository) Get(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return r.NatsBaseRepository.Get(ctx, r.subscriptionKey(subscriptionID))
}

// Put stores a subscription as handed over by the billing system
func (r *NatsSubscriptionRepository) Put(ctx context.Context, subscription *models.Subscription) error {
	return r.NatsBaseRepository.Put(ctx, r.subscriptionKey(subscription.ID), subscription)
}

// ConsumeSession decrements the balance once per session id.
func (r *NatsSubscriptionRepository) ConsumeSession(ctx context.Context, subscriptionID, sessionID string) (bool, error) {
	_, applied, err := r.Mutate(ctx, r.subscriptionKey(subscriptionID), nil,
		func(sub *models.Subscription, _ bool) (bool, error) {
			return sub.Consume(sessionID, time.Now().UTC()), nil
		})
	return applied, err
}
