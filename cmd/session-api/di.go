// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/nats-io/nats.go"
	"github.com/samber/do/v2"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/handlers"
	"github.com/itqan-platform/session-service/internal/infrastructure/auth"
	"github.com/itqan-platform/session-service/internal/infrastructure/livekit"
	"github.com/itqan-platform/session-service/internal/infrastructure/livekit/webhook"
	"github.com/itqan-platform/session-service/internal/infrastructure/messaging"
	"github.com/itqan-platform/session-service/internal/infrastructure/postgres"
	"github.com/itqan-platform/session-service/internal/infrastructure/store"
	"github.com/itqan-platform/session-service/internal/service"
)

// setupDI builds the dependency graph of the service on top of an open NATS connection
// and its KV buckets.
func setupDI(env environment, natsConn *nats.Conn, stores *keyValueStores, jwtAuth *auth.JWTAuth) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, env)
	do.ProvideValue(injector, jwtAuth)
	do.ProvideValue(injector, service.ServiceConfig{
		RecordingOutputPath: env.RecordingOutputPath,
		TokenTTL:            env.TokenTTL,
		SweepWorkers:        env.SweepWorkers,
	}.WithDefaults())

	registerRepositories(injector, env, stores)

	do.Provide(injector, func(i do.Injector) (*messaging.MessageBuilder, error) {
		return messaging.NewMessageBuilder(natsConn), nil
	})
	do.Provide(injector, func(i do.Injector) (*livekit.Provider, error) {
		e := do.MustInvoke[environment](i)
		return livekit.NewProvider(livekit.Config{
			URL:       e.LiveKit.URL,
			APIKey:    e.LiveKit.APIKey,
			APISecret: e.LiveKit.APISecret,
			Timeout:   e.LiveKit.Timeout,
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (*webhook.LiveKitWebhookValidator, error) {
		e := do.MustInvoke[environment](i)
		return webhook.NewLiveKitWebhookValidator(e.LiveKit.APIKey, e.LiveKit.APISecret), nil
	})

	registerServices(injector)

	do.Provide(injector, func(i do.Injector) (*handlers.LiveKitWebhookHandler, error) {
		return handlers.NewLiveKitWebhookHandler(do.MustInvoke[*service.WebhookEventService](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*handlers.SessionHandler, error) {
		return handlers.NewSessionHandler(do.MustInvoke[*service.SessionService](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*SessionsAPI, error) {
		return NewSessionsAPI(
			do.MustInvoke[*service.SessionService](i),
			do.MustInvoke[*service.SchedulingService](i),
			do.MustInvoke[*service.MeetingService](i),
			do.MustInvoke[*service.AttendanceService](i),
			do.MustInvoke[*service.UsageService](i),
			do.MustInvoke[*service.LiveKitWebhookService](i),
		), nil
	})

	return injector
}

func registerRepositories(injector do.Injector, env environment, stores *keyValueStores) {
	do.ProvideValue[domain.SessionRepository](injector, store.NewNatsSessionRepository(stores.Sessions))
	do.ProvideValue[domain.AttendanceRepository](injector, store.NewNatsAttendanceRepository(stores.Attendance))
	do.ProvideValue[domain.RecordingRepository](injector, store.NewNatsRecordingRepository(stores.Recordings))
	do.ProvideValue[domain.AcademySettingsRepository](injector, store.NewNatsAcademySettingsRepository(stores.AcademySettings))
	do.ProvideValue[domain.ProcessedEventRepository](injector, store.NewNatsProcessedEventRepository(stores.ProcessedEvents))

	if env.SubscriptionStore == subscriptionStorePostgres {
		postgres.RegisterDI(injector, env.DatabaseURL)
		do.Provide(injector, func(i do.Injector) (domain.SubscriptionRepository, error) {
			repo, err := do.Invoke[*postgres.SubscriptionRepository](i)
			if err != nil {
				return nil, err
			}
			return repo, nil
		})
		return
	}
	do.ProvideValue[domain.SubscriptionRepository](injector, store.NewNatsSubscriptionRepository(stores.Subscriptions))
}

func registerServices(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*service.AttendanceService, error) {
		return service.NewAttendanceService(
			do.MustInvoke[domain.SessionRepository](i),
			do.MustInvoke[domain.AttendanceRepository](i),
			do.MustInvoke[domain.AcademySettingsRepository](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.UsageService, error) {
		subscriptions, err := do.Invoke[domain.SubscriptionRepository](i)
		if err != nil {
			return nil, err
		}
		return service.NewUsageService(do.MustInvoke[domain.SessionRepository](i), subscriptions), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.MeetingService, error) {
		provider := do.MustInvoke[*livekit.Provider](i)
		return service.NewMeetingService(
			do.MustInvoke[domain.SessionRepository](i),
			do.MustInvoke[domain.RecordingRepository](i),
			do.MustInvoke[domain.AcademySettingsRepository](i),
			provider,
			provider,
			do.MustInvoke[service.ServiceConfig](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.SessionService, error) {
		usage, err := do.Invoke[*service.UsageService](i)
		if err != nil {
			return nil, err
		}
		return service.NewSessionService(
			do.MustInvoke[domain.SessionRepository](i),
			do.MustInvoke[domain.AcademySettingsRepository](i),
			do.MustInvoke[*service.AttendanceService](i),
			usage,
			do.MustInvoke[*service.MeetingService](i),
			do.MustInvoke[*messaging.MessageBuilder](i),
			do.MustInvoke[service.ServiceConfig](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.SchedulingService, error) {
		return service.NewSchedulingService(
			do.MustInvoke[domain.SessionRepository](i),
			do.MustInvoke[service.ServiceConfig](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.WebhookEventService, error) {
		return service.NewWebhookEventService(
			do.MustInvoke[domain.SessionRepository](i),
			do.MustInvoke[domain.ProcessedEventRepository](i),
			do.MustInvoke[*service.SessionService](i),
			do.MustInvoke[*service.AttendanceService](i),
			do.MustInvoke[*service.MeetingService](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*service.LiveKitWebhookService, error) {
		return service.NewLiveKitWebhookService(
			do.MustInvoke[*messaging.MessageBuilder](i),
			do.MustInvoke[*webhook.LiveKitWebhookValidator](i),
		), nil
	})
}
