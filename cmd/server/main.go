// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/database"
	"github.com/Makeis02/landingmaj-sub003/internal/i18n"
	"github.com/Makeis02/landingmaj-sub003/internal/router"
	"github.com/Makeis02/landingmaj-sub003/internal/services"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg.Log)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	if err := database.SeedInitialData(db, cfg.Admin); err != nil {
		logrus.WithError(err).Fatal("Failed to seed initial data")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.SetDebugMode(!cfg.IsProduction())
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}

	var cache services.PromotionCache
	if cfg.Redis.Enabled() {
		redisCache, err := services.NewRedisPromotionCache(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.PromotionTTL)*time.Second)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, using in-memory promotion cache")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	var events services.EventPublisher = services.LogEventPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		events = services.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
		logrus.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.OrdersTopic,
		}).Info("Publishing order events to Kafka")
	}
	defer events.Close()

	svc := router.NewServices(db, cfg, services.NewStripeGateway(cfg.Payment), storage, cache, events)

	scheduler := services.NewExpiryScheduler(svc.Orders,
		time.Duration(cfg.Checkout.ExpirySweepInterval)*time.Minute,
		time.Duration(cfg.Checkout.PendingOrderTTL)*time.Minute)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Initialize router
	r := router.Initialize(db, cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)
}
