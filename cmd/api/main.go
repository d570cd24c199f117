// Package main provides the entrypoint for the Gatekeeper API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatekeeper/gatekeeper/internal/api"
	"github.com/gatekeeper/gatekeeper/internal/auth"
	"github.com/gatekeeper/gatekeeper/internal/backup"
	"github.com/gatekeeper/gatekeeper/internal/database"
	"github.com/gatekeeper/gatekeeper/internal/gsm"
	"github.com/gatekeeper/gatekeeper/internal/storage"
	"github.com/gatekeeper/gatekeeper/internal/store"
	"github.com/gatekeeper/gatekeeper/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "gatekeeper-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Gatekeeper API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Open the storage backend
	storePort, cleanup, err := openStorage(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer cleanup()

	// Initialize the store
	gateStore := store.New(store.Config{
		Port:   storePort,
		Logger: log,
	})

	// Initialize the command dispatcher. The log sender stands in for a
	// real GSM modem or SMS gateway until one is wired up.
	var sender gsm.SMSSender = gsm.NewLogSender(log)
	dispatcher := gsm.NewDispatcher(gsm.DispatcherConfig{
		Sender: sender,
		Store:  gateStore,
		Logger: log,
	})
	log.Info().Msg("command dispatcher initialized")

	// Initialize the backup manager
	backupManager := backup.NewManager(backup.Config{
		Port:   storePort,
		Store:  gateStore,
		Logger: log,
	})

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.gatekeeper.local",
		Audience:   "gatekeeper-api",
	})

	adminUsername := os.Getenv("ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = "admin"
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin"
		log.Warn().Msg("using default admin password - not secure for production")
	}

	authService := auth.NewService(auth.ServiceConfig{
		JWTService:    jwtService,
		AdminUsername: adminUsername,
		AdminPassword: adminPassword,
		Logger:        log,
	})
	log.Info().Msg("auth service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		AuthService:   authService,
		Store:         gateStore,
		Dispatcher:    dispatcher,
		BackupManager: backupManager,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// openStorage selects the storage backend from STORAGE_BACKEND: memory,
// badger (default), or postgres. The returned cleanup closes the backend.
func openStorage(ctx context.Context, log zerolog.Logger) (storage.Port, func(), error) {
	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = "badger"
	}

	switch backend {
	case "memory":
		log.Warn().Msg("using in-memory storage - data will not survive restarts")
		return storage.NewMemory(), func() {}, nil

	case "badger":
		path := os.Getenv("BADGER_PATH")
		if path == "" {
			path = "./data/gatekeeper"
		}
		db, err := storage.NewBadger(storage.BadgerConfig{
			Path:   path,
			Logger: log,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", path).Msg("badger storage opened")
		cleanup := func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close badger")
			}
		}
		return db, cleanup, nil

	case "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("postgres storage connected")
		return pg, pool.Close, nil

	default:
		log.Fatal().Str("backend", backend).Msg("unknown STORAGE_BACKEND")
		return nil, nil, nil
	}
}
