// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/itqan-platform/session-service/internal/service"

var (
	transitionCounter     metric.Int64Counter
	webhookEventCounter   metric.Int64Counter
	usageDecrementCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter(meterName)
	// instruments returned alongside an error are no-ops
	transitionCounter, _ = meter.Int64Counter("session.transitions",
		metric.WithDescription("Session state machine transitions written"),
		metric.WithUnit("{transition}"))
	webhookEventCounter, _ = meter.Int64Counter("session.webhook.events",
		metric.WithDescription("Provider webhook events processed"),
		metric.WithUnit("{event}"))
	usageDecrementCounter, _ = meter.Int64Counter("subscription.usage.decrements",
		metric.WithDescription("Subscription balance decrements applied"),
		metric.WithUnit("{session}"))
}

func recordTransition(ctx context.Context, to string) {
	transitionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

func recordWebhookEvent(ctx context.Context, event, outcome string) {
	webhookEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

func recordUsageDecrement(ctx context.Context, academyID string) {
	usageDecrementCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("academy_id", academyID)))
}
