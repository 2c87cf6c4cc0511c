package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coursehub/coursehub-api/internal/config"
	"github.com/coursehub/coursehub-api/internal/domain/course"
	"github.com/coursehub/coursehub-api/internal/domain/dashboard"
	"github.com/coursehub/coursehub-api/internal/domain/promo"
	"github.com/coursehub/coursehub-api/internal/domain/reconciliation"
	"github.com/coursehub/coursehub-api/internal/domain/student"
	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/pkg/database"
	"github.com/coursehub/coursehub-api/internal/pkg/jwt"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/metrics"
	"github.com/coursehub/coursehub-api/internal/pkg/midtrans"
	"github.com/coursehub/coursehub-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CourseHub API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	archive, err := storage.New(ctx, storage.Config{
		Backend:     cfg.ArchiveBackend,
		LocalDir:    cfg.ArchiveLocalDir,
		S3Endpoint:  cfg.S3Endpoint,
		S3Region:    cfg.S3Region,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification archive")
	}

	if cfg.MidtransServerKey == "" {
		log.Warn().Msg("MIDTRANS_SERVER_KEY is empty: payment notifications will be rejected")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(true)
	}

	jwtService := jwt.NewService(cfg.JWTSecret, 15*time.Minute)
	gateway := midtrans.NewClient(midtrans.Config{
		ServerKey:       cfg.MidtransServerKey,
		IsProduction:    cfg.MidtransIsProduction,
		EnabledPayments: cfg.MidtransEnabledPayments,
		Timeout:         cfg.MidtransTimeout,
	})

	// ---------- Repositories ----------
	courseRepo := course.NewRepository(db)
	studentRepo := student.NewRepository(db)
	promoRepo := promo.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	dashboardRepo := dashboard.NewRepository(db)

	// ---------- Services ----------
	courseService := course.NewService(courseRepo)
	promoService := promo.NewService(promoRepo)
	fulfiller := reconciliation.NewFulfiller(courseService, promoService, cfg.ConsumePromoOnPaid())

	var publisher transaction.Publisher
	if rdb != nil {
		publisher = transaction.NewRedisPublisher(rdb)
	}

	transactionService := transaction.NewService(
		transactionRepo, courseService, studentRepo, promoService,
		gateway, publisher, fulfiller, m,
		transaction.Config{
			FrontendURL:        cfg.FrontendURL,
			ConsumePromoOnPaid: cfg.ConsumePromoOnPaid(),
		},
	)
	reconciliationService := reconciliation.NewService(
		transactionService, rdb, archive, reconciliation.NewRecorder(m),
		reconciliation.Config{
			ServerKey:      cfg.MidtransServerKey,
			LookupAttempts: cfg.WebhookLookupAttempts,
			LookupDelay:    cfg.WebhookLookupDelay,
		},
	)
	dashboardService := dashboard.NewService(dashboardRepo)

	checkoutLimiter := middleware.NewRateLimiter(ctx, cfg.CheckoutRateLimitRPS, cfg.CheckoutRateLimitBurst)

	router := newRouter(routerDeps{
		allowedOrigins:  cfg.AllowedOrigins,
		jwt:             jwtService,
		metrics:         m,
		health:          db.PingContext,
		checkoutLimiter: checkoutLimiter.Middleware,
		transactions:    transaction.NewHandler(transactionService),
		feed:            transaction.NewFeed(transactionService, rdb, cfg.AllowedOrigins),
		webhooks:        reconciliation.NewHandler(reconciliationService),
		promos:          promo.NewHandler(promoService),
		dashboard:       dashboard.NewHandler(dashboardService),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("Server exited properly")
}
