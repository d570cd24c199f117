// Package api provides the HTTP API for Gatekeeper.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gatekeeper/gatekeeper/internal/api/handler"
	"github.com/gatekeeper/gatekeeper/internal/api/middleware"
	"github.com/gatekeeper/gatekeeper/internal/auth"
	"github.com/gatekeeper/gatekeeper/internal/backup"
	"github.com/gatekeeper/gatekeeper/internal/gsm"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	ServiceName   string
	AuthService   *auth.Service
	Store         *store.Store
	Dispatcher    *gsm.Dispatcher
	BackupManager *backup.Manager
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gatekeeper-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Store)
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	deviceHandler := handler.NewDeviceHandler(cfg.Store)
	userHandler := handler.NewUserHandler(cfg.Store)
	commandHandler := handler.NewCommandHandler(cfg.Dispatcher)
	logHandler := handler.NewLogHandler(cfg.Store)
	settingsHandler := handler.NewSettingsHandler(cfg.Store)
	backupHandler := handler.NewBackupHandler(cfg.BackupManager)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)         // 10 req/min
	commandRateLimit := middleware.RateLimitByIP(middleware.CommandRateLimit)   // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit) // 10 requests per minute per IP
			r.Post("/login", authHandler.Login)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Devices (authenticated)
		r.Route("/devices", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", deviceHandler.ListDevices)
			r.Post("/", deviceHandler.CreateDevice)
			r.Route("/{deviceId}", func(r chi.Router) {
				r.Get("/", deviceHandler.GetDevice)
				r.Patch("/", deviceHandler.UpdateDevice)
				r.Delete("/", deviceHandler.DeleteDevice)

				// Authorization grants
				r.Get("/users", deviceHandler.ListDeviceUsers)
				r.Put("/users/{userId}", deviceHandler.AuthorizeUser)
				r.Delete("/users/{userId}", deviceHandler.DeauthorizeUser)

				// Command dispatch sends SMS, so it gets its own limit
				r.With(commandRateLimit).Post("/commands", commandHandler.SendCommand)

				// Activity log
				r.Get("/logs", logHandler.ListDeviceLogs)
				r.Delete("/logs", logHandler.ClearDeviceLogs)
			})
		})

		// Users (authenticated)
		r.Route("/users", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", userHandler.ListUsers)
			r.Post("/", userHandler.CreateUser)
			r.Route("/{userId}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Patch("/", userHandler.UpdateUser)
				r.Delete("/", userHandler.DeleteUser)
			})
		})

		// System log bucket (authenticated)
		r.Route("/logs", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/system", logHandler.ListSystemLogs)
			r.Delete("/system", logHandler.ClearSystemLogs)
		})

		// Global settings (authenticated)
		r.Route("/settings", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", settingsHandler.GetSettings)
			r.Patch("/", settingsHandler.UpdateSettings)
			r.Put("/active-device", settingsHandler.SetActiveDevice)
			r.Post("/steps", settingsHandler.CompleteStep)
		})

		// Backup (authenticated)
		r.Route("/backup", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/export", backupHandler.Export)
			r.Post("/restore", backupHandler.Restore)
		})
	})

	return r
}
