// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the session service API that provides a RESTful API for live tutoring
// sessions and handles NATS messages for the session service.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/handlers"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/internal/service"
	"github.com/itqan-platform/session-service/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	// Set up JWT validator needed by the authenticated API routes.
	jwtAuth, err := setupJWTAuth(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
		return
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	stores, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	injector := setupDI(env, natsConn, stores, jwtAuth)
	defer func() {
		if report := injector.Shutdown(); report != nil && !report.Succeed {
			slog.With(logging.ErrKey, report.Error()).Error("error shutting down dependencies")
		}
	}()

	svc, err := do.Invoke[*SessionsAPI](injector)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error building services")
		return
	}
	webhookHandler := do.MustInvoke[*handlers.LiveKitWebhookHandler](injector)
	sessionHandler := do.MustInvoke[*handlers.SessionHandler](injector)

	httpServer := setupHTTPServer(flags, env, svc, jwtAuth, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, natsConn, map[string]domain.MessageHandler{
		models.LiveKitWebhookWildcardSubject: webhookHandler,
		models.SessionSweepSubject:           sessionHandler,
		models.SessionGetSubject:             sessionHandler,
	})
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	if env.SweepInterval > 0 {
		go runSweeper(ctx, env.SweepInterval, do.MustInvoke[*service.SessionService](injector))
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel)
}
