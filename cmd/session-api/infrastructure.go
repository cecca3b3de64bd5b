// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/itqan-platform/session-service/internal/infrastructure/auth"
	"github.com/itqan-platform/session-service/internal/infrastructure/store"
	"github.com/itqan-platform/session-service/internal/logging"
)

// gracefulShutdownSeconds bounds how long draining NATS and the HTTP server may take.
const gracefulShutdownSeconds = 25

// setupJWTAuth configures JWT authentication for the service
func setupJWTAuth(env environment) (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            env.JWKSURL,
		Audience:           env.JWTAudience,
		MockLocalPrincipal: env.MockLocalPrincipal,
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupNATS connects to NATS. The wait group is released once the connection is closed
// after draining, and done is signalled when the connection is lost for good.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	natsURL := env.NatsURL
	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		natsURL,
		nats.Name("itqan-session-service"),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.MaxReconnects(env.NatsMaxReconnects),
		nats.ReconnectWait(env.NatsReconnectWait),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", natsURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected after a drain during shutdown.
				slog.Info("NATS connection closed gracefully")
			} else {
				slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
				select {
				case done <- os.Interrupt:
				default:
				}
			}
			gracefulCloseWG.Done()
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	return natsConn, nil
}

// keyValueStores are the JetStream buckets backing the repositories.
type keyValueStores struct {
	Sessions        jetstream.KeyValue
	Attendance      jetstream.KeyValue
	Recordings      jetstream.KeyValue
	Subscriptions   jetstream.KeyValue
	AcademySettings jetstream.KeyValue
	ProcessedEvents jetstream.KeyValue
}

// getKeyValueStores opens the service buckets, creating any that do not exist yet.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*keyValueStores, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stores := &keyValueStores{}
	buckets := []struct {
		target *jetstream.KeyValue
		config jetstream.KeyValueConfig
	}{
		{&stores.Sessions, jetstream.KeyValueConfig{Bucket: store.KVStoreNameSessions, History: 5}},
		{&stores.Attendance, jetstream.KeyValueConfig{Bucket: store.KVStoreNameAttendance, History: 5}},
		{&stores.Recordings, jetstream.KeyValueConfig{Bucket: store.KVStoreNameRecordings, History: 5}},
		{&stores.Subscriptions, jetstream.KeyValueConfig{Bucket: store.KVStoreNameSubscriptions, History: 5}},
		{&stores.AcademySettings, jetstream.KeyValueConfig{Bucket: store.KVStoreNameAcademySettings}},
		{&stores.ProcessedEvents, jetstream.KeyValueConfig{Bucket: store.KVStoreNameWebhookEvents, TTL: store.ProcessedEventTTL}},
	}
	for _, b := range buckets {
		kv, err := js.KeyValue(ctx, b.config.Bucket)
		if errors.Is(err, jetstream.ErrBucketNotFound) {
			slog.With("bucket", b.config.Bucket).Info("creating NATS KV bucket")
			kv, err = js.CreateKeyValue(ctx, b.config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open NATS KV bucket %s: %w", b.config.Bucket, err)
		}
		*b.target = kv
	}
	return stores, nil
}
