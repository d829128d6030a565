package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stayflow/stayflow-backend/internal/automation"
	"github.com/stayflow/stayflow-backend/internal/chat"
	"github.com/stayflow/stayflow-backend/internal/checkin/consumers"
	"github.com/stayflow/stayflow-backend/internal/checkin/events"
	"github.com/stayflow/stayflow-backend/internal/checkin/repository"
	"github.com/stayflow/stayflow-backend/internal/identity/extractor"
	"github.com/stayflow/stayflow-backend/internal/mapping"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/ocr"
	"github.com/stayflow/stayflow-backend/internal/orchestrator"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/database"
	"github.com/stayflow/stayflow-backend/pkg/httputil"
	"github.com/stayflow/stayflow-backend/pkg/logger"
	"github.com/stayflow/stayflow-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("checkin-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("checkin-service", cfg.Server.Environment)
	log.Info().Msg("starting Check-in Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewCheckinEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize external clients
	pmsClient := pms.NewHTTPClient(&cfg.PMS, log)
	ocrClient := ocr.NewHTTPClient(&cfg.OCR, log)
	runner := automation.NewHTTPRunner(&cfg.Automation, log)

	// Load the PMS country table once at startup
	countryCtx, cancelCountries := context.WithTimeout(context.Background(), 30*time.Second)
	countryNames, err := pmsClient.ListCountries(countryCtx)
	cancelCountries()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load PMS country table")
	}
	countries := mapping.NewCountryTable(countryNames, cfg.Checkin.CountryOverrides)

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Initialize the check-in core
	chain := extractor.NewChain(log,
		extractor.NewMRZExtractor(),
		extractor.NewFreeTextExtractor(),
	)
	orch := orchestrator.New(orchestrator.Deps{
		OCR:           ocrClient,
		Extractor:     chain,
		PMS:           pmsClient,
		Matcher:       matching.NewMatcher(cfg.Checkin.SimilarityFloor),
		Countries:     countries,
		Payments:      mapping.NewPaymentTable(),
		Runner:        runner,
		Events:        publisher,
		Sessions:      sessionRepo,
		Registrations: registrationRepo,
	}, &cfg.Checkin, log)

	transport := chat.NewHTTPTransport(&cfg.Chat, log)
	notifier := chat.NewNotifier(transport, log)
	manager := session.NewManager(orch, notifier, cfg.Checkin.InactivityTimeout, log)
	defer manager.Close()

	// Start the activity log consumer
	activityConsumer, err := consumers.NewActivityEventConsumer(rmq, activityRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create activity consumer")
	}
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	if err := activityConsumer.Start(consumerCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start activity consumer")
	}

	// Initialize handlers
	chatHandler := chat.NewHandler(manager, sessionRepo, activityRepo, cfg.Chat.AllowedUserIDs, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":          "healthy",
			"service":         "checkin-service",
			"database":        db.Health(req.Context()),
			"rabbitmq":        rmq.Health(),
			"active_sessions": manager.ActiveSessions(),
		})
	})

	// Webhook endpoint (signed by the chat gateway)
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.WebhookAuth(cfg.Chat.WebhookSecret))
			r.Post("/webhook", chatHandler.Webhook)
		})

		// Ops endpoints
		r.Get("/sessions", chatHandler.ListSessions)
		r.Get("/sessions/live/{userID}", chatHandler.LiveSession)
		r.Get("/activity", chatHandler.ListActivity)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
