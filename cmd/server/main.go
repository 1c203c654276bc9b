package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/advisor"
	"github.com/propflow/etl-api/internal/alerts"
	"github.com/propflow/etl-api/internal/batch"
	"github.com/propflow/etl-api/internal/config"
	"github.com/propflow/etl-api/internal/connector"
	"github.com/propflow/etl-api/internal/handlers"
	"github.com/propflow/etl-api/internal/middleware"
	"github.com/propflow/etl-api/internal/migration"
	"github.com/propflow/etl-api/internal/pipeline"
	"github.com/propflow/etl-api/internal/quality"
	"github.com/propflow/etl-api/internal/routes"
	"github.com/propflow/etl-api/internal/scheduler"
	"github.com/propflow/etl-api/internal/sources"
	"github.com/propflow/etl-api/internal/store"
	"github.com/propflow/etl-api/internal/transform"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config     *config.Config
	stores     *store.Stores
	scheduler  *scheduler.Scheduler
	dispatcher *pipeline.Dispatcher
	logger     zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// The archive database is optional; without it the engine runs fully
	// in-memory.
	var archive *store.Archive
	if cfg.ArchiveDatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.ArchiveDatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to the archive database")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to ping archive database")
		}
		if err := migration.RunMigrations(cfg.ArchiveDatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run archive migrations")
		}
		archive = store.NewArchive(db, logger)
	} else {
		logger.Info().Msg("No archive database configured, runs and alerts stay in memory only")
	}

	stores := store.NewMemoryStores()

	// Core services.
	hub := alerts.NewHub(stores.Alerts, archiveOrNil(archive), logger)
	registry := sources.NewRegistry(stores.DataSources, connector.NewFactory(), logger)
	engine := transform.NewEngine(stores.Rules, logger)
	analyzer := quality.NewAnalyzer(quality.Options{
		MinRecordsForStats:   cfg.Quality.MinRecordsForStats,
		MissingRateThreshold: cfg.Quality.MissingRateThreshold,
		OutlierZScore:        cfg.Quality.OutlierZScore,
	}, logger)
	orch := pipeline.NewOrchestrator(stores.Jobs, stores.Runs, registry, engine, analyzer, hub, runArchiverOrNil(archive), logger)

	adv := advisor.New(stores.Suggestions, advisor.DefaultThresholds(), logger)
	orch.OnRunCompleted(adv.OnRunCompleted)

	// Dispatch and scheduling.
	dispatcher := pipeline.NewDispatcher(orch, cfg.Scheduler.QueueSize, cfg.Scheduler.Workers, logger)
	dispatcher.Start(context.Background())
	sched := scheduler.New(stores.Jobs, dispatcher, hub, logger)
	sched.Start(cfg.Scheduler.CheckInterval)

	coordinator := batch.NewCoordinator(stores.Batches, stores.Jobs, orch, cfg.Scheduler.BatchConcurrency, logger)

	app := &application{
		config:     cfg,
		stores:     stores,
		scheduler:  sched,
		dispatcher: dispatcher,
		logger:     logger,
	}

	// Initialize the HTTP router and middleware.
	router := routes.NewRouter(routes.Handlers{
		Auth:        handlers.NewAuthHandler(cfg, logger),
		DataSources: handlers.NewDataSourceHandler(registry, logger),
		Rules:       handlers.NewRuleHandler(stores.Rules, engine, logger),
		Jobs:        handlers.NewJobHandler(stores.Jobs, stores.Runs, orch, sched, logger),
		Batches:     handlers.NewBatchHandler(stores.Batches, coordinator, logger),
		Alerts:      handlers.NewAlertHandler(hub, logger),
		Suggestions: handlers.NewSuggestionHandler(stores.Suggestions, logger),
		Status:      handlers.NewStatusHandler(orch, registry, hub, logger),
	})
	loggedRouter := middleware.LoggingMiddleware(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// archiveOrNil avoids handing a typed-nil archiver to the hub.
func archiveOrNil(a *store.Archive) alerts.Archiver {
	if a == nil {
		return nil
	}
	return a
}

func runArchiverOrNil(a *store.Archive) pipeline.RunArchiver {
	if a == nil {
		return nil
	}
	return a
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the scheduler before the dispatcher so no new triggers land on
	// a closing queue.
	app.scheduler.Stop()
	app.dispatcher.Stop()
	logger.Info().Msg("Scheduler and dispatcher stopped.")
}
