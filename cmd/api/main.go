package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/cache"
	"github.com/GTDGit/event_marketplace_api/internal/config"
	"github.com/GTDGit/event_marketplace_api/internal/database"
	"github.com/GTDGit/event_marketplace_api/internal/handler"
	"github.com/GTDGit/event_marketplace_api/internal/metrics"
	"github.com/GTDGit/event_marketplace_api/internal/middleware"
	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/sse"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
	"github.com/GTDGit/event_marketplace_api/internal/worker"
)

// main is the application entrypoint for the event marketplace API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting event marketplace api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Metrics
	collector := metrics.New()

	// 5. Notification delivery
	var directSender notify.Sender = notify.LogSender{}
	if cfg.WhatsApp.Enabled() {
		directSender = notify.NewWhatsAppSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.Timeout)
		log.Info().Msg("whatsapp delivery enabled")
	}

	dispatchSender := directSender
	var consumer *notify.AMQPConsumer
	if cfg.Rabbit.URL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Error().Err(err).Msg("rabbitmq publisher failed")
			fmt.Fprintf(os.Stderr, "rabbitmq publisher failed: %v\n", err)
			os.Exit(1)
		}
		defer publisher.Close()

		consumer, err = notify.NewAMQPConsumer(cfg.Rabbit.URL, cfg.Rabbit.Exchange, cfg.Rabbit.Queue, cfg.Rabbit.Prefetch)
		if err != nil {
			log.Error().Err(err).Msg("rabbitmq consumer failed")
			fmt.Fprintf(os.Stderr, "rabbitmq consumer failed: %v\n", err)
			os.Exit(1)
		}
		defer consumer.Close()

		dispatchSender = publisher
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("notifications routed through rabbitmq")
	}
	dispatcher := notify.NewDispatcher(dispatchSender, cfg.Notify.Workers, cfg.Notify.QueueSize, collector)

	// 6. Initialize repositories
	userRepo := repository.NewUserRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	requestRepo := repository.NewContactRequestRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	chatRepo := repository.NewChatRepository(db)
	joinRepo := repository.NewJoinRequestRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	// 7. Admin event hub
	hub := sse.NewHub()
	events := sse.NewHubNotifier(hub)

	// 8. Initialize services
	accountSvc := service.NewAccountService(userRepo, subRepo, dispatcher, events, collector)
	contactSvc := service.NewContactRequestService(requestRepo, serviceRepo, userRepo, chatRepo, accountSvc, dispatcher, collector, cfg.DefaultCurrency)
	bookingSvc := service.NewBookingService(bookingRepo, serviceRepo, requestRepo, userRepo, accountSvc, dispatcher, collector, cfg.DefaultCurrency)
	subscriptionSvc := service.NewSubscriptionService(subRepo, userRepo, requestRepo, accountSvc, dispatcher, events, collector)
	catalogSvc := service.NewCatalogService(serviceRepo, cfg.DefaultCurrency)
	joinSvc := service.NewJoinRequestService(joinRepo, userRepo, dispatcher)
	ratingSvc := service.NewRatingService(ratingRepo, serviceRepo)

	if err := accountSvc.BootstrapAdmins(context.Background(), cfg.AdminPhones); err != nil {
		log.Error().Err(err).Msg("admin bootstrap failed")
		os.Exit(1)
	}

	otpLimiter := cache.NewRateLimiter(redisClient, "otp-send", cfg.OTP.SendLimit, cfg.OTP.SendWindow)
	issuer := utils.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := service.NewAuthService(userRepo, cache.NewOTPStore(redisClient), otpLimiter, issuer, dispatcher, service.AuthConfig{
		OTPTTL:    cfg.OTP.TTL,
		OTPLength: cfg.OTP.Length,
		DevEcho:   cfg.OTP.DevEchoCodes && !cfg.IsProduction(),
	})

	// 9. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": db.PingContext,
			"redis":    redisClient.Ping,
		}),
		Auth:           handler.NewAuthHandler(authSvc),
		Catalog:        handler.NewCatalogHandler(catalogSvc, subscriptionSvc),
		ContactRequest: handler.NewContactRequestHandler(contactSvc),
		Booking:        handler.NewBookingHandler(bookingSvc),
		Subscription:   handler.NewSubscriptionHandler(subscriptionSvc),
		Admin:          handler.NewAdminHandler(accountSvc, subscriptionSvc),
		JoinRequest:    handler.NewJoinRequestHandler(joinSvc),
		Rating:         handler.NewRatingHandler(ratingSvc),
		Events:         handler.NewSSEHandler(hub),
	}

	// 10. Setup middleware
	authFailLimiter := cache.NewRateLimiter(redisClient, "auth-fail", 20, time.Minute)
	jwtMw := middleware.NewJWTMiddleware(issuer, authFailLimiter)
	publicLimiter := cache.NewRateLimiter(redisClient, "public", 120, time.Minute)

	// 11. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(collector.GinMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.GET("/metrics", gin.WrapH(collector.Handler()))
	setupRoutes(router, handlers, jwtMw, middleware.RateLimit(publicLimiter))

	// 12. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 13. Start workers
	go dispatcher.Start(ctx)
	go worker.NewSubscriptionSweepWorker(
		subscriptionSvc, cache.NewJobLock(redisClient),
		cfg.Worker.SubscriptionSweepInterval,
		cfg.Worker.SweepLockTTL,
	).Start(ctx)
	go worker.NewReconcileWorker("conversion", contactSvc.ReconcileConverted, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileBatchSize).Start(ctx)
	go worker.NewReconcileWorker("supplier-sync", subscriptionSvc.ReconcileSuppliers, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileBatchSize).Start(ctx)
	if consumer != nil {
		go worker.NewNotificationWorker(consumer, directSender, collector, cfg.WhatsApp.Timeout).Start(ctx)
	}

	// 14. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 15. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 16. Cancel context to stop workers
	cancel()

	// 17. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health         *handler.HealthHandler
	Auth           *handler.AuthHandler
	Catalog        *handler.CatalogHandler
	ContactRequest *handler.ContactRequestHandler
	Booking        *handler.BookingHandler
	Subscription   *handler.SubscriptionHandler
	Admin          *handler.AdminHandler
	JoinRequest    *handler.JoinRequestHandler
	Rating         *handler.RatingHandler
	Events         *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, publicLimit gin.HandlerFunc) {
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/v1/plans", handlers.Catalog.ListPlans)
	router.GET("/v1/services/:id", publicLimit, handlers.Catalog.GetService)
	router.GET("/v1/services/:id/ratings", publicLimit, handlers.Rating.List)
	router.GET("/v1/services/:id/ratings/summary", publicLimit, handlers.Rating.Summary)
	router.POST("/v1/join-requests", publicLimit, handlers.JoinRequest.Submit)

	auth := router.Group("/v1/auth", publicLimit)
	{
		auth.POST("/otp/send", handlers.Auth.SendOTP)
		auth.POST("/otp/verify", handlers.Auth.VerifyOTP)
	}

	v1 := router.Group("/v1")
	v1.Use(jwtMiddleware.Handle())

	asClient := middleware.RequireRole(models.RoleClient)
	asSupplier := middleware.RequireRole(models.RoleSupplier)

	v1.POST("/services", asSupplier, handlers.Catalog.CreateService)

	ratings := v1.Group("/services/:id/ratings", asClient)
	{
		ratings.POST("", handlers.Rating.Rate)
		ratings.GET("/eligibility", handlers.Rating.Eligibility)
		ratings.GET("/me", handlers.Rating.Mine)
	}

	requests := v1.Group("/contact-requests")
	{
		requests.POST("", asClient, handlers.ContactRequest.Submit)
		requests.GET("/supplier", asSupplier, handlers.ContactRequest.ListForSupplier)
		requests.GET("/client", asClient, handlers.ContactRequest.ListForClient)
		requests.GET("/status", handlers.ContactRequest.Status)
		requests.PATCH("/:id/status", asSupplier, handlers.ContactRequest.Respond)
		requests.POST("/:id/convert", asClient, handlers.ContactRequest.Convert)
	}

	bookings := v1.Group("/bookings")
	{
		bookings.POST("", asClient, handlers.Booking.Create)
		bookings.GET("/my", asClient, handlers.Booking.ListMine)
		bookings.GET("/supplier", asSupplier, handlers.Booking.ListForSupplier)
		bookings.PATCH("/:id/status", asSupplier, handlers.Booking.UpdateStatus)
		bookings.POST("/:id/cancel", asClient, handlers.Booking.Cancel)
	}

	subscriptions := v1.Group("/subscriptions", asSupplier)
	{
		subscriptions.POST("", handlers.Subscription.Create)
		subscriptions.POST("/renew", handlers.Subscription.Renew)
		subscriptions.POST("/cancel", handlers.Subscription.Cancel)
		subscriptions.POST("/auto-renew", handlers.Subscription.SetAutoRenew)
		subscriptions.GET("/usage", handlers.Subscription.Usage)
	}

	// Admin routes
	admin := v1.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/suppliers/:id/unlock", handlers.Admin.UnlockSupplier)
		admin.GET("/suppliers/attention", handlers.Admin.SuppliersNeedingAttention)

		admin.GET("/subscriptions", handlers.Admin.ListSubscriptions)
		admin.GET("/subscriptions/stats", handlers.Admin.SubscriptionStats)
		admin.GET("/subscriptions/export", handlers.Admin.ExportSubscriptions)
		admin.GET("/subscriptions/:id", handlers.Admin.GetSubscription)
		admin.PATCH("/subscriptions/:id", handlers.Admin.UpdateSubscription)
		admin.POST("/subscriptions/:id/cancel", handlers.Admin.CancelSubscription)
		admin.POST("/subscriptions/:id/extend", handlers.Admin.ExtendSubscription)

		admin.GET("/join-requests", handlers.JoinRequest.List)
		admin.PATCH("/join-requests/:id/review", handlers.JoinRequest.Review)
		admin.PATCH("/join-requests/:id/approve", handlers.JoinRequest.Approve)
		admin.PATCH("/join-requests/:id/reject", handlers.JoinRequest.Reject)

		admin.GET("/events", handlers.Events.Stream)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// setupLogger configures zerolog based on the environment.
func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
