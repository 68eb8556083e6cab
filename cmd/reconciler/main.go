// Command reconciler runs the background expiry sweep (C9): on its cron
// schedule it expires every policy and permit whose end_date has passed and
// buffers expiry reminders (C10) for records entering their tenant's
// reminder window. It shares every repository and lifecycle engine with
// cmd/platform but exposes no public API beyond /health and /metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/notify"
	"github.com/fleetcompliance/platform/internal/platform/reconcile"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/config"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
	"github.com/fleetcompliance/platform/pkg/messaging"
	"github.com/fleetcompliance/platform/pkg/metrics"
)

func main() {
	cfg, err := config.LoadWithValidation("reconciler")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("reconciler", cfg.Server.Environment)
	log.Info().Str("schedule", cfg.Reconciler.Schedule).Msg("starting compliance reconciler")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLifecycleEvents, "reconciler", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	notifyPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeNotificationEvents, "reconciler", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create notification publisher")
	}

	policyRepo := repository.NewPolicyRepository(db)
	permitRepo := repository.NewPermitRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	auditWriter := audit.NewWriter(auditRepo, historyRepo)
	locker := lifecycle.NewPostgresLocker(db)

	policyEngine := lifecycle.NewPolicyEngine(db, policyRepo, paymentRepo, userRepo, notificationRepo, auditWriter, locker, publisher, nil)
	permitEngine := lifecycle.NewPermitEngine(db, permitRepo, userRepo, notificationRepo, auditWriter, locker, publisher, nil)
	notifySvc := notify.NewService(notificationRepo, notifyPublisher)

	sweeper := reconcile.NewSweeper(tenantRepo, policyRepo, permitRepo, userRepo, policyEngine, permitEngine, notifySvc, nil, log)

	c := cron.New()
	_, err = c.AddFunc(cfg.Reconciler.Schedule, func() {
		summary, err := sweeper.Run(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("reconciliation sweep failed")
			return
		}
		log.Info().
			Int("tenants_swept", summary.TenantsSwept).
			Int("policies_expired", summary.PoliciesExpired).
			Int("permits_expired", summary.PermitsExpired).
			Int("reminders_queued", summary.RemindersQueued).
			Int("failures", summary.Failures).
			Msg("reconciliation sweep complete")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule reconciliation sweep")
	}
	c.Start()
	defer c.Stop()

	metricsRegistry := metrics.NewRegistry()

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "reconciler",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Info().Str("addr", addr).Msg("health/metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down reconciler")
	_ = srv.Shutdown(context.Background())
	log.Info().Msg("reconciler stopped")
}
