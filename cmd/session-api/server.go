// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/itqan-platform/session-service/internal/domain"
	"github.com/itqan-platform/session-service/internal/domain/models"
	"github.com/itqan-platform/session-service/internal/infrastructure/auth"
	"github.com/itqan-platform/session-service/internal/infrastructure/messaging"
	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/itqan-platform/session-service/internal/middleware"
	"github.com/itqan-platform/session-service/internal/service"
	"github.com/itqan-platform/session-service/pkg/constants"
)

// publicPaths are served without a bearer token. Webhooks carry their own signature.
var publicPaths = []string{"/webhooks/", "/livez", "/readyz"}

// Routes mounts the API endpoints.
func (s *SessionsAPI) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/livez", s.Livez)
	r.Get("/readyz", s.Readyz)
	r.Post(middleware.LiveKitWebhookPath, s.LiveKitWebhook)

	r.Group(func(r chi.Router) {
		r.Use(academyScope)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.CreateSession)
			r.Post("/series", s.ScheduleSeries)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.GetSession)
				r.Post("/start", s.StartSession)
				r.Post("/complete", s.CompleteSession)
				r.Post("/absent", s.MarkSessionAbsent)
				r.Post("/cancel", s.CancelSession)
				r.Post("/token", s.IssueToken)
				r.Post("/recordings", s.StartRecording)
				r.Get("/recordings", s.ListRecordings)
				r.Get("/attendance", s.GetAttendance)
				r.Get("/attendance/{participantID}", s.GetParticipantAttendance)
			})
		})
		r.Post("/recordings/{recordingID}/stop", s.StopRecording)
		r.Get("/subscriptions/{subscriptionID}", s.GetSubscription)
	})

	return r
}

// academyScope requires the tenant header and carries it in the request context.
func academyScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(constants.AcademyIDHeader)
		if id == "" {
			writeError(w, r, domain.NewValidationError("missing "+constants.AcademyIDHeader+" header"))
			return
		}
		ctx := context.WithValue(r.Context(), constants.AcademyIDContextID, id)
		ctx = logging.WithAcademy(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newHandler wraps the API routes in the HTTP middleware chain.
func newHandler(svc *SessionsAPI, jwtAuth *auth.JWTAuth, allowedOrigins []string) http.Handler {
	var handler http.Handler = svc.Routes()

	// Note: Order matters - the last middleware added runs first.
	handler = jwtAuth.Middleware(publicPaths...)(handler)
	handler = middleware.WebhookBodyCaptureMiddleware()(handler)
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Authorization",
			"Content-Type",
			constants.AcademyIDHeader,
			constants.ParticipantRoleHeader,
			constants.RequestIDHeader,
		},
		ExposedHeaders:   []string{constants.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(handler)
	handler = otelhttp.NewHandler(handler, "session-api")

	return handler
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, env environment, svc *SessionsAPI, jwtAuth *auth.JWTAuth, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHandler(svc, jwtAuth, env.CORSAllowedOrigins),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}

// createNatsSubscriptions subscribes the message handlers to their subjects in the
// service queue group, so each message is handled by one replica.
func createNatsSubscriptions(ctx context.Context, natsConn *nats.Conn, subjects map[string]domain.MessageHandler) error {
	for subject, handler := range subjects {
		if !handler.HandlerReady() {
			return domain.ErrServiceUnavailable
		}
		_, err := natsConn.QueueSubscribe(subject, models.SessionServiceQueue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, messaging.NewNatsMessage(msg))
		})
		if err != nil {
			return err
		}
		slog.With("subject", subject, "queue", models.SessionServiceQueue).Debug("subscribed to NATS subject")
	}
	return nil
}

// runSweeper sweeps overdue sessions every interval until ctx is cancelled.
func runSweeper(ctx context.Context, interval time.Duration, sessionService *service.SessionService) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.With("interval", interval.String()).Info("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := sessionService.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "session sweep failed", logging.ErrKey, err)
				continue
			}
			slog.DebugContext(ctx, "session sweep finished",
				"completed", result.Completed,
				"absent", result.Absent,
				"refinished", result.Refinished,
				"failed", result.Failed,
			)
		}
	}
}

// gracefulShutdown stops the HTTP server and drains NATS, waiting for both.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("graceful shutdown started")

	// Cancelling first marks the coming NATS close as expected.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	gracefulCloseWG.Wait()
	slog.Info("graceful shutdown complete")
}
