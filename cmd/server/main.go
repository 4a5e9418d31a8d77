// Package main provides the entry point for the intent workflow service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvernon0786/Infin8Content-sub005/internal/approval"
	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/config"
	"github.com/dvernon0786/Infin8Content-sub005/internal/database"
	"github.com/dvernon0786/Infin8Content-sub005/internal/gate"
	"github.com/dvernon0786/Infin8Content-sub005/internal/linking"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/planner"
	"github.com/dvernon0786/Infin8Content-sub005/internal/queue"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
	httpserver "github.com/dvernon0786/Infin8Content-sub005/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("intent-workflow-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create metrics collectors.
	metrics := observability.NewMetrics("intentflow")

	// Create repositories.
	workflowRepo := repository.NewPgWorkflowRepository(db)
	approvalRepo := repository.NewPgApprovalRepository(db)
	keywordRepo := repository.NewPgKeywordUnitRepository(db)
	articleRepo := repository.NewPgArticleRepository(db)

	// Create the audit recorder. When audit publishing is disabled, events
	// are logged locally and discarded.
	var recorder audit.Recorder
	if cfg.Audit.Enabled {
		kafkaRecorder := audit.NewKafkaRecorder(cfg.Audit, logger, metrics)
		defer func() {
			if closeErr := kafkaRecorder.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close audit recorder")
			}
		}()
		recorder = kafkaRecorder
		logger.Info().
			Strs("brokers", cfg.Audit.Brokers).
			Str("topic", cfg.Audit.Topic).
			Msg("audit events will publish to kafka")
	} else {
		recorder = audit.NopRecorder{}
		logger.Info().Msg("audit publishing disabled")
	}

	// Create the Planner Agent trigger client.
	plannerClient, err := planner.NewClient(cfg.Planner, logger)
	if err != nil {
		return fmt.Errorf("create planner client: %w", err)
	}

	// Create gate validators.
	competitorGate := gate.NewCompetitorGate(workflowRepo, recorder, metrics, logger)
	longtailGate := gate.NewLongtailClusteringGate(workflowRepo, recorder, metrics, logger)
	subtopicGate := gate.NewSubtopicApprovalGate(workflowRepo, approvalRepo, recorder, metrics, logger)

	// Create approval processors.
	seedApproval := approval.NewSeedApprovalProcessor(workflowRepo, approvalRepo, keywordRepo, recorder, metrics, logger)
	subtopicApproval := approval.NewSubtopicApprovalProcessor(workflowRepo, approvalRepo, keywordRepo, recorder, metrics, logger)
	humanApproval := approval.NewHumanApprovalProcessor(workflowRepo, approvalRepo, recorder, metrics, logger)

	// Create article fan-out and fan-in processors.
	queueProcessor := queue.NewProcessor(
		cfg.Workflow.MaxQueueUnits,
		workflowRepo,
		keywordRepo,
		articleRepo,
		plannerClient,
		recorder,
		metrics,
		logger,
	)
	linkProcessor := linking.NewProcessor(workflowRepo, articleRepo, recorder, metrics, logger)

	// Create the HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		DB:               db,
		Workflows:        workflowRepo,
		Keywords:         keywordRepo,
		CompetitorGate:   competitorGate,
		LongtailGate:     longtailGate,
		SubtopicGate:     subtopicGate,
		SeedApproval:     seedApproval,
		SubtopicApproval: subtopicApproval,
		HumanApproval:    humanApproval,
		Queuer:           queueProcessor,
		Linker:           linkProcessor,
	}, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP REST API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("intent-workflow-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down intent-workflow-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shut down HTTP REST API server with timeout.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Shut down metrics server if running.
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("intent-workflow-service shutdown complete")
	return nil
}
