package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/demo"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/guard"
	"github.com/zerotrust/platform/internal/handler"
	"github.com/zerotrust/platform/internal/infra"
	"github.com/zerotrust/platform/internal/notify"
	"github.com/zerotrust/platform/internal/risk"
	"github.com/zerotrust/platform/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	jwtExpiry, err := time.ParseDuration(cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("parse JWT expiry: %w", err)
	}

	// In-memory document store
	db := docstore.New()
	for _, name := range domain.AllCollections {
		db.CreateCollection(name)
	}
	logger.Info("document store initialized", "collections", len(domain.AllCollections))

	// Infrastructure
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, jwtExpiry)
	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	}, logger)
	events := infra.NewEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaEnabled, logger)
	defer events.Close()
	hub := infra.NewAlertHub(logger)

	// Risk engine
	evaluator := risk.NewEvaluator(db, mailer, events, hub, logger)

	// Services
	authSvc := service.NewAuthService(db, jwtMgr, evaluator)
	activitySvc := service.NewActivityService(db, evaluator)
	adminSvc := service.NewAdminService(db, mailer, logger)

	// Demo data
	if cfg.SeedDemoData {
		if err := demo.NewSeeder(db, logger).Seed(); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, adminSvc)
	userHandler := handler.NewUserHandler(activitySvc)
	adminHandler := handler.NewAdminHandler(adminSvc, activitySvc, evaluator, db, hub)
	healthHandler := handler.NewHealthHandler(db)

	authLimiter := guard.NewRateLimiter(20, time.Minute)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/api/health", healthHandler.Health)

	// Credential endpoints (no auth, rate limited)
	r.Group(func(r chi.Router) {
		r.Use(handler.RateLimit(authLimiter))
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/app-login", authHandler.AppLogin)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwtMgr, db))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Post("/api/auth/emergency-request", authHandler.EmergencyRequest)
		r.Post("/api/app-action", userHandler.AppAction)

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/profile", userHandler.Profile)
			r.Get("/risk-score", userHandler.RiskScore)
			r.Get("/activity", userHandler.Activity)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Route("/api/admin", func(r chi.Router) {
				r.Get("/dashboard", adminHandler.Dashboard)
				r.Get("/users", adminHandler.Users)
				r.Get("/incidents", adminHandler.Incidents)
				r.Get("/alerts", adminHandler.Alerts)
				r.Get("/active-sessions", adminHandler.ActiveSessions)
				r.Get("/blocked-users", adminHandler.BlockedUsers)
				r.Get("/audit-trail", adminHandler.AuditTrail)
				r.Get("/alert-feed", adminHandler.AlertFeed)

				r.Route("/user/{userID}", func(r chi.Router) {
					r.Post("/action", adminHandler.UserAction)
					r.Get("/risk-history", adminHandler.RiskHistory)
					r.Get("/sessions", adminHandler.UserSessions)
					r.Get("/risk-breakdown", adminHandler.RiskBreakdown)
					r.Get("/activity-analytics", adminHandler.ActivityAnalytics)
					r.Post("/simulate-action", adminHandler.SimulateAction)
				})

				r.Get("/apps", adminHandler.Apps)
				r.Post("/apps", adminHandler.CreateApp)
				r.Route("/app/{appID}", func(r chi.Router) {
					r.Get("/users", adminHandler.AppUsers)
					r.Post("/user", adminHandler.CreateCredential)
				})

				r.Get("/login-windows", adminHandler.LoginWindows)
				r.Post("/login-windows", adminHandler.CreateLoginWindow)
				r.Get("/emergency-requests", adminHandler.EmergencyRequests)
			})

			r.Post("/api/demo/simulate-attack", adminHandler.SimulateAttack)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
