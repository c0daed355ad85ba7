package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/internal/email"
	apptHandler "github.com/jwalitptl/rdv-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/rdv-api/internal/handler/auth"
	availHandler "github.com/jwalitptl/rdv-api/internal/handler/availability"
	catalogHandler "github.com/jwalitptl/rdv-api/internal/handler/catalog"
	exportHandler "github.com/jwalitptl/rdv-api/internal/handler/export"
	healthHandler "github.com/jwalitptl/rdv-api/internal/handler/health"
	notifHandler "github.com/jwalitptl/rdv-api/internal/handler/notification"
	"github.com/jwalitptl/rdv-api/internal/middleware"
	"github.com/jwalitptl/rdv-api/internal/payment"
	"github.com/jwalitptl/rdv-api/internal/repository/postgres"
	"github.com/jwalitptl/rdv-api/internal/router"
	apptService "github.com/jwalitptl/rdv-api/internal/service/appointment"
	authService "github.com/jwalitptl/rdv-api/internal/service/auth"
	availService "github.com/jwalitptl/rdv-api/internal/service/availability"
	catalogService "github.com/jwalitptl/rdv-api/internal/service/catalog"
	"github.com/jwalitptl/rdv-api/internal/service/emailqueue"
	exportService "github.com/jwalitptl/rdv-api/internal/service/export"
	"github.com/jwalitptl/rdv-api/internal/service/notification"
	"github.com/jwalitptl/rdv-api/pkg/auth"
	"github.com/jwalitptl/rdv-api/pkg/logger"
	"github.com/jwalitptl/rdv-api/pkg/messaging"
	"github.com/jwalitptl/rdv-api/pkg/messaging/redis"
	"github.com/jwalitptl/rdv-api/pkg/metrics"
	"github.com/jwalitptl/rdv-api/pkg/security"
	pkgvalidator "github.com/jwalitptl/rdv-api/pkg/validator"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := security.HashPassword(*hashPassword, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.ZL

	if err := pkgvalidator.Register(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New("rdv", registry)

	checks := map[string]healthHandler.Pinger{"postgres": db}

	// Redis is optional: without it appointment events are simply not broadcast.
	var publisher notification.Publisher
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		appLogger.Warn("redis unavailable, event publishing disabled", "error", err.Error())
	} else {
		defer broker.Close()
		publisher = messaging.NewPublisher(broker, cfg.Redis.Channel)
		if p, ok := broker.(healthHandler.Pinger); ok {
			checks["redis"] = p
		}
	}

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	failureRepo := postgres.NewEmailFailureRepository(db)

	// Services
	sender := email.NewSMTPSender(cfg.SMTP)
	queue := emailqueue.NewService(failureRepo, sender, cfg.Queue.MaxRetries, appLogger, appMetrics)
	notifier := notification.NewAsync(notification.NewService(sender, queue, publisher, appLogger))

	payments := payment.NewProcessor()
	if cfg.Stripe.SecretKey != "" {
		payments.Register(payment.MethodCard, payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.Currency))
	}

	availability := availService.NewService(appointmentRepo, providerRepo, serviceRepo,
		cache.New(cfg.Cache.TTL, cfg.Cache.CleanupInterval), appLogger)
	appointments := apptService.NewService(appointmentRepo, availability, payments, notifier, appLogger, appMetrics)
	catalog := catalogService.NewService(providerRepo, serviceRepo, availability, appLogger)
	exports := exportService.NewService(appointmentRepo, providerRepo, serviceRepo)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(cfg.Admin, jwtSvc, appLogger)

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Health:        healthHandler.NewHandler(checks, registry),
		Auth:          authHandler.NewHandler(authSvc),
		Availability:  availHandler.NewHandler(availability),
		Appointments:  apptHandler.NewHandler(appointments),
		Catalog:       catalogHandler.NewHandler(catalog),
		Notifications: notifHandler.NewHandler(queue, cfg.Queue.BatchSize),
		Exports:       exportHandler.NewHandler(exports),
	}, router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RateLimit:      rate.Limit(cfg.Server.RequestsPerSecond),
		RateBurst:      cfg.Server.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HSTS:           cfg.Server.Mode == "release",
		Registerer:     registry,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if !notifier.Wait(5 * time.Second) {
		log.Warn().Msg("pending notifications abandoned")
	}

	log.Info().Msg("server exited properly")
}
