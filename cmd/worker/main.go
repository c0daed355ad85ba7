package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/internal/email"
	"github.com/jwalitptl/rdv-api/internal/repository/postgres"
	"github.com/jwalitptl/rdv-api/internal/service/emailqueue"
	"github.com/jwalitptl/rdv-api/internal/worker"
	"github.com/jwalitptl/rdv-api/pkg/logger"
	"github.com/jwalitptl/rdv-api/pkg/metrics"
)

func setupHealthCheck(port int, db *sqlx.DB, gatherer prometheus.Gatherer, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	}).WithFields(map[string]interface{}{"component": "worker"})
	log.Logger = appLogger.ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	queue := emailqueue.NewService(
		postgres.NewEmailFailureRepository(db),
		email.NewSMTPSender(cfg.SMTP),
		cfg.Queue.MaxRetries,
		appLogger,
		metrics.New("rdv_worker", registry),
	)

	processor := worker.NewQueueProcessor(queue, worker.QueueProcessorConfig{
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
	}, appLogger)
	cleaner := worker.NewCleanupWorker(queue, cfg.Queue.CleanupSchedule, cfg.Queue.RetentionDays, appLogger)

	health := setupHealthCheck(cfg.Server.WorkerHealthPort, db, registry, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := cleaner.Start(ctx); err != nil {
			appLogger.Error(err, "Cleanup worker stopped")
			cancel()
		}
	}()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = health.Shutdown(shutdownCtx)
	appLogger.Info("Worker exited")
}
