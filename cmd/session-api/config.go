// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/itqan-platform/session-service/internal/logging"
)

// Subscription balance backends.
const (
	subscriptionStoreNats     = "nats"
	subscriptionStorePostgres = "postgres"
)

// flags are the command line flags for the session service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the session service.
type environment struct {
	Port string `env:"PORT" envDefault:"8080"`

	NatsURL           string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NatsMaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"3"`
	NatsReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`

	LiveKit livekitEnvironment `envPrefix:"LIVEKIT_"`

	RecordingOutputPath string        `env:"RECORDING_OUTPUT_PATH" envDefault:"/recordings"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"3h"`

	// SubscriptionStore selects where subscription balances live: "nats" or "postgres".
	SubscriptionStore string `env:"SUBSCRIPTION_STORE" envDefault:"nats"`
	DatabaseURL       string `env:"DATABASE_URL"`

	// SweepInterval runs the overdue-session sweep in process. Zero leaves the sweep to
	// an external scheduler publishing on the sweep subject.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`
	SweepWorkers  int           `env:"SWEEP_WORKERS" envDefault:"8"`

	JWKSURL            string `env:"JWKS_URL"`
	JWTAudience        string `env:"JWT_AUDIENCE"`
	MockLocalPrincipal string `env:"JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// livekitEnvironment holds the LiveKit server credentials.
type livekitEnvironment struct {
	URL       string        `env:"URL,required"`
	APIKey    string        `env:"API_KEY,required"`
	APISecret string        `env:"API_SECRET,required"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// parseFlags parses command line flags for the session service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [log.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the session service
func parseEnv() environment {
	var e environment
	if err := env.Parse(&e); err != nil {
		slog.With(logging.ErrKey, err).Error("invalid environment")
		os.Exit(1)
	}

	switch e.SubscriptionStore {
	case subscriptionStoreNats:
	case subscriptionStorePostgres:
		if e.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required when SUBSCRIPTION_STORE is postgres")
			os.Exit(1)
		}
	default:
		slog.With("value", e.SubscriptionStore).Warn("unknown SUBSCRIPTION_STORE, using nats")
		e.SubscriptionStore = subscriptionStoreNats
	}

	if e.SweepInterval < 0 {
		e.SweepInterval = 0
	}

	return e
}
