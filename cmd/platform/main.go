// Command platform is the HTTP API surface for the vehicle compliance
// platform: authentication, the vehicle/customer/policy/permit CRUD
// surface, the compliance lifecycle engine, and the reporting and
// dynamic-field endpoints layered on top of it. Background expiry sweeps
// live in cmd/reconciler instead, so this process stays purely
// request/response.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/authn"
	"github.com/fleetcompliance/platform/internal/platform/compliance"
	"github.com/fleetcompliance/platform/internal/platform/handler"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/notify"
	"github.com/fleetcompliance/platform/internal/platform/report"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/config"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
	"github.com/fleetcompliance/platform/pkg/messaging"
	"github.com/fleetcompliance/platform/pkg/metrics"
)

func main() {
	cfg, err := config.LoadWithValidation("platform")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("platform", cfg.Server.Environment)
	log.Info().Msg("starting compliance platform")

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

	if err := rmq.DeclareExchange(messaging.ExchangeLifecycleEvents); err != nil {
		log.Fatal().Err(err).Msg("failed to declare lifecycle exchange")
	}
	if err := rmq.DeclareExchange(messaging.ExchangeNotificationEvents); err != nil {
		log.Fatal().Err(err).Msg("failed to declare notification exchange")
	}
	if err := rmq.DeclareExchange(messaging.ExchangeAuditEvents); err != nil {
		log.Fatal().Err(err).Msg("failed to declare audit exchange")
	}

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLifecycleEvents, "platform", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	notifyPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeNotificationEvents, "platform", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create notification publisher")
	}

	// Repositories
	vehicleRepo := repository.NewVehicleRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	ownershipRepo := repository.NewOwnershipRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	permitRepo := repository.NewPermitRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	dynamicFieldRepo := repository.NewDynamicFieldRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	auditWriter := audit.NewWriter(auditRepo, historyRepo)

	// The Postgres advisory locker is the default: it needs no extra
	// infrastructure and binds its lifetime to the caller's transaction.
	// A deployment fronting multiple read replicas instead points
	// FLEETCOMP_REDIS_ADDR at a shared Redis so every replica's
	// connections serialize through the same lock.
	var locker lifecycle.Locker
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lifecycle.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis-backed activation locker")
	} else {
		locker = lifecycle.NewPostgresLocker(db)
	}

	policyEngine := lifecycle.NewPolicyEngine(db, policyRepo, paymentRepo, userRepo, notificationRepo, auditWriter, locker, publisher, nil)
	permitEngine := lifecycle.NewPermitEngine(db, permitRepo, userRepo, notificationRepo, auditWriter, locker, publisher, nil)

	complianceSvc := compliance.NewService(vehicleRepo, policyRepo, permitRepo, tenantRepo, nil)
	reportSvc := report.NewService(policyRepo, permitRepo, complianceSvc)
	notifySvc := notify.NewService(notificationRepo, notifyPublisher)

	jwtManager := authn.NewManager(&cfg.JWT, nil)
	authnSvc := authn.NewService(userRepo, sessionRepo, tenantRepo, jwtManager, &cfg.JWT, log, nil)

	// Handlers
	authHandler := handler.NewAuthHandler(authnSvc, log)
	vehicleHandler := handler.NewVehicleHandler(vehicleRepo, log)
	customerHandler := handler.NewCustomerHandler(customerRepo, ownershipRepo, log)
	policyHandler := handler.NewPolicyHandler(policyEngine, policyRepo, paymentRepo, log)
	permitHandler := handler.NewPermitHandler(permitEngine, permitRepo, log)
	dynamicFieldHandler := handler.NewDynamicFieldHandler(dynamicFieldRepo, log)
	tenantHandler := handler.NewTenantHandler(tenantRepo, userRepo, log)
	reportHandler := handler.NewReportHandler(reportSvc, log)
	complianceHandler := handler.NewComplianceHandler(complianceSvc, log)
	auditHandler := handler.NewAuditHandler(auditRepo, historyRepo, log)
	notificationHandler := handler.NewNotificationHandler(notifySvc, log)

	metricsRegistry := metrics.NewRegistry()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Tenant-ID", "X-Tenant-Slug", "X-CSRF-Token"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "platform",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	// Login/refresh happen before a tenant is known, so they sit outside
	// both SessionMiddleware and TenantMiddleware.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn.SessionMiddleware(jwtManager))

		// Super-admin platform management: a super_admin has no tenant of
		// its own, so these routes never pass through TenantMiddleware.
		r.Route("/tenants", func(r chi.Router) {
			r.Use(authn.RequirePermission("tenant.manage"))
			r.Get("/", tenantHandler.List)
			r.Post("/", tenantHandler.Create)
			r.Get("/{id}", tenantHandler.Get)
			r.Patch("/{id}/status", tenantHandler.SetStatus)
			r.Post("/{id}/users", tenantHandler.CreateUser)
			r.Put("/{id}/settings", tenantHandler.UpdateSettings)
		})

		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// Every remaining route requires a resolved tenant.
		r.Group(func(r chi.Router) {
			r.Use(httputil.TenantMiddleware)

			r.Route("/vehicles", func(r chi.Router) {
				r.Use(authn.RequirePermission("vehicle.read"))
				r.Get("/", vehicleHandler.List)
				r.Get("/{id}", vehicleHandler.Get)
				r.Get("/{id}/policies", policyHandler.ListByVehicle)
				r.Get("/{id}/permits", permitHandler.ListByVehicle)
				r.Get("/{id}/owner", customerHandler.CurrentOwner)
				r.Get("/{id}/status", complianceHandler.VehicleStatus)
				r.Get("/{id}/snapshot", reportHandler.VehicleSnapshot)
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("vehicle.write"))
					r.Post("/", vehicleHandler.Create)
					r.Delete("/{id}", vehicleHandler.Delete)
					r.Post("/{id}/transfer", customerHandler.TransferOwnership)
				})
			})

			r.Route("/customers", func(r chi.Router) {
				r.Use(authn.RequirePermission("customer.read"))
				r.Get("/", customerHandler.List)
				r.Get("/{id}", customerHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("customer.write"))
					r.Post("/", customerHandler.Create)
					r.Delete("/{id}", customerHandler.Delete)
				})
			})

			r.Route("/policies", func(r chi.Router) {
				r.Use(authn.RequirePermission("policy.read"))
				r.Get("/{id}", policyHandler.Get)
				r.Get("/{id}/payments", policyHandler.ListPayments)
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("policy.create"))
					r.Post("/", policyHandler.Create)
					r.Put("/{id}", policyHandler.Edit)
				})
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("policy.activate"))
					r.Post("/{id}/request-activation", policyHandler.RequestActivation)
					r.Post("/{id}/activate", policyHandler.Activate)
					r.Post("/{id}/cancel", policyHandler.Cancel)
				})
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("payment.record"))
					r.Post("/{id}/payments", policyHandler.RecordPayment)
				})
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("payment.verify"))
					r.Post("/{id}/payments/{paymentID}/verify", policyHandler.VerifyPayment)
				})
			})

			r.Route("/permits", func(r chi.Router) {
				r.Use(authn.RequirePermission("permit.read"))
				r.Get("/{id}", permitHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("permit.create"))
					r.Post("/", permitHandler.Create)
					r.Put("/{id}", permitHandler.Edit)
				})
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("permit.activate"))
					r.Post("/{id}/activate", permitHandler.Activate)
					r.Post("/{id}/cancel", permitHandler.Cancel)
				})
			})

			r.Route("/dynamic-fields", func(r chi.Router) {
				r.Use(authn.RequirePermission("dynamicfield.read"))
				r.Get("/{entityKind}", dynamicFieldHandler.ListDefinitions)
				r.Get("/values/{id}", dynamicFieldHandler.ListValues)
				r.Group(func(r chi.Router) {
					r.Use(authn.RequirePermission("dynamicfield.write"))
					r.Post("/", dynamicFieldHandler.CreateDefinition)
					r.Delete("/{id}", dynamicFieldHandler.DeactivateDefinition)
					r.Post("/values", dynamicFieldHandler.SetValue)
				})
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(authn.RequirePermission("reports.read"))
				r.Get("/policies/active", reportHandler.ActivePolicies)
				r.Get("/policies/expired", reportHandler.ExpiredPolicies)
				r.Get("/permits/active", reportHandler.ActivePermits)
				r.Get("/permits/expired", reportHandler.ExpiredPermits)
				r.Get("/registrations", reportHandler.RegistrationsInRange)
				r.Get("/compliance/summary", complianceHandler.TenantSummary)
			})

			r.Route("/audit", func(r chi.Router) {
				r.Use(authn.RequirePermission("audit.read"))
				r.Get("/{entityKind}/{entityID}", auditHandler.ListByEntity)
				r.Get("/{entityKind}/{entityID}/history", auditHandler.HistoryAsOf)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.ListMine)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
