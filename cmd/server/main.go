package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tour-experience-booking/internal/config"
	"github.com/iliyamo/tour-experience-booking/internal/database"
	"github.com/iliyamo/tour-experience-booking/internal/handler"
	"github.com/iliyamo/tour-experience-booking/internal/logger"
	"github.com/iliyamo/tour-experience-booking/internal/middleware"
	"github.com/iliyamo/tour-experience-booking/internal/payment"
	"github.com/iliyamo/tour-experience-booking/internal/queue"
	"github.com/iliyamo/tour-experience-booking/internal/repository"
	"github.com/iliyamo/tour-experience-booking/internal/router"
	"github.com/iliyamo/tour-experience-booking/internal/scheduler"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init("tour-booking", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	experiences := repository.NewExperienceRepo(db)
	dates := repository.NewExperienceDateRepo(db)
	bookings := repository.NewBookingRepo(db)
	reviews := repository.NewReviewRepo(db)
	stats := repository.NewStatsRepo(db)

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.Queue.URL != "" {
		pub := service.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.Exchange)
		defer pub.Close()
		events = pub
	}

	// Must stay an untyped nil when payments are off.
	var gateway payment.Gateway
	if cfg.Payment.Enabled() {
		gateway = payment.NewStripeGateway(cfg.Payment)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; bookings are confirmed without payment")
	}

	// Services
	authSvc := service.NewAuthService(users, tokens, cfg)
	catalogSvc := service.NewCatalogService(db, users, experiences, dates, reviews)
	bookingSvc := service.NewBookingService(db, experiences, dates, bookings, gateway, events)
	bookingSvc.SetPendingTTL(cfg.PendingPaymentTTL)
	reviewSvc := service.NewReviewService(db, bookings, reviews)
	adminSvc := service.NewAdminService(users, experiences, stats)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger())

	cache := middleware.NewRedisCache(cfg.Cache, rdb)
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc), cfg.JWTSecret, limit)
	router.RegisterCatalog(e, handler.NewCatalogHandler(catalogSvc), cfg.JWTSecret, cache)
	router.RegisterBookings(e,
		handler.NewBookingHandler(bookingSvc),
		handler.NewReviewHandler(reviewSvc),
		handler.NewWebhookHandler(payment.NewWebhookVerifier(cfg.Payment.WebhookSecret), bookingSvc),
		cfg.JWTSecret, limit)
	router.RegisterAdmin(e, handler.NewAdminHandler(adminSvc), cfg.JWTSecret)

	var wg sync.WaitGroup
	if cfg.CompletionInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.New(bookingSvc, cfg.CompletionInterval).Start(ctx)
		}()
	}
	if cfg.Queue.URL != "" && cfg.Queue.ConsumerEnabled {
		out, err := queue.OpenNotificationLog(cfg.Queue.NotificationLog)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Queue.NotificationLog).Msg("cannot open notification log")
		}
		defer out.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Exchange, out).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	}

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	wg.Wait()
}
