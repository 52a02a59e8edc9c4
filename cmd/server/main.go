package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/clockwise-hq/be-ts-approvals/internal/client"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/database"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/middleware"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/natsclient"
	"github.com/clockwise-hq/be-ts-approvals/internal/config"
	"github.com/clockwise-hq/be-ts-approvals/internal/handler"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
	"github.com/clockwise-hq/be-ts-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("tx_policy", string(cfg.TxPolicy)).
		Msg("Starting Timesheet Approvals Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database, cfg.TxPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize store
	store := repository.NewStore(db)

	// Initialize service clients
	projectsClient := client.NewProjectsClient(cfg.Clients.ProjectsURL)
	identityClient := client.NewIdentityClient(cfg.Clients.IdentityURL)
	entriesClient := client.NewTimeEntriesClient(cfg.Clients.TimeEntriesURL)

	log.Info().
		Str("projects_url", cfg.Clients.ProjectsURL).
		Str("identity_url", cfg.Clients.IdentityURL).
		Str("time_entries_url", cfg.Clients.TimeEntriesURL).
		Msg("Service clients initialized")

	// Initialize NATS notification publisher (optional)
	var events service.EventPublisher
	if cfg.NATS.Enabled {
		nc, err := natsclient.Connect(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, notifications disabled")
			events = client.NewNotificationPublisher(nil, log.Logger)
		} else {
			defer nc.Close()
			events = client.NewNotificationPublisher(nc, log.Logger)
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	} else {
		events = client.NewNotificationPublisher(nil, log.Logger)
	}

	// Initialize services
	approvalService := service.NewApprovalService(store, projectsClient, identityClient, entriesClient, events, log)
	bulkService := service.NewBulkService(store, projectsClient, identityClient, approvalService, log)
	finalizerService := service.NewFinalizerService(store, events, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, bulkService, finalizerService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Approval routes
	mux.HandleFunc("/api/v1/approvals/approve", requirePost(httpHandler.Approve))
	mux.HandleFunc("/api/v1/approvals/reject", requirePost(httpHandler.Reject))
	mux.HandleFunc("/api/v1/approvals/project-week/approve", requirePost(httpHandler.ApproveProjectWeek))
	mux.HandleFunc("/api/v1/approvals/project-week/reject", requirePost(httpHandler.RejectProjectWeek))
	mux.HandleFunc("/api/v1/approvals/project-week/freeze", requirePost(httpHandler.FreezeProjectWeek))
	mux.HandleFunc("/api/v1/approvals/history", httpHandler.GetApprovalHistory)

	// Timesheet lifecycle routes
	mux.HandleFunc("/api/v1/timesheets/submit", requirePost(httpHandler.SubmitTimesheet))
	mux.HandleFunc("/api/v1/timesheets/bill", requirePost(httpHandler.BillTimesheet))
	mux.HandleFunc("/api/v1/timesheets/bulk-verify", requirePost(httpHandler.BulkVerify))
	mux.HandleFunc("/api/v1/timesheets/bulk-bill", requirePost(httpHandler.BulkBill))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
