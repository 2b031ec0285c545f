package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/crm-campaign-backend/docs"
	"github.com/onegreenvn/crm-campaign-backend/internal/config"
	"github.com/onegreenvn/crm-campaign-backend/internal/database"
	"github.com/onegreenvn/crm-campaign-backend/internal/database/repository"
	"github.com/onegreenvn/crm-campaign-backend/internal/pkg/distlock"
	"github.com/onegreenvn/crm-campaign-backend/internal/router"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
	"github.com/onegreenvn/crm-campaign-backend/internal/services/auth"
	"github.com/onegreenvn/crm-campaign-backend/internal/services/excel"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

// @title CRM Campaign API
// @version 1.0
// @description Customers, orders, audience rules and campaign delivery tracking

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter `Bearer ` followed by your JWT token (e.g. "Bearer <token>")

func main() {
	cfg := config.Load()

	configureLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	docs.SwaggerInfo.BasePath = cfg.BasePath

	utils.InitSentry(cfg.SentryDSN)
	defer utils.FlushSentry()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	audienceRepo := repository.NewAudienceRepository(db)
	logRepo := repository.NewCommunicationLogRepository(db)

	// Campaign locks span instances only when Redis is configured
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Warnf("Redis unavailable, falling back to in-process campaign locks: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			logrus.Infof("Redis connected at %s", cfg.Redis.Addr)
			defer redisClient.Close()
		}
	}
	locks := distlock.NewFactory(redisClient, cfg.Redis.LockTTL)

	authService := auth.NewAuthService(userRepo, refreshTokenRepo, cfg.Auth)
	sseHub := services.NewSSEHub()
	audienceService := services.NewAudienceService(audienceRepo)
	deliveryService := services.NewDeliveryService(logRepo, sseHub)
	historyService := services.NewHistoryService(logRepo)
	customerService := services.NewCustomerService(customerRepo)
	orderService := services.NewOrderService(orderRepo, customerRepo)
	vendorService := services.NewVendorService(cfg.Delivery)
	defer vendorService.Stop()

	queue := newDeliveryQueue(cfg)
	campaignService := services.NewCampaignService(audienceService, logRepo, queue, locks, cfg.Delivery.CallbackURL)

	vendorClient := services.NewVendorClient(cfg.Delivery.VendorURL, cfg.Delivery.VendorTimeout)
	worker := services.NewDeliveryWorker(vendorClient, deliveryService, logRepo, cfg.Delivery.MaxRetries, cfg.Delivery.RetryBaseDelay)
	if err := queue.Start(worker.Process); err != nil {
		logrus.Fatalf("Failed to start delivery workers: %v", err)
	}

	sweeper := services.NewPendingSweeper(logRepo, deliveryService, cfg.Delivery.PendingTimeout, cfg.Delivery.SweepInterval)
	sweeper.Start()

	tokenCleanupService := auth.NewTokenCleanupService(refreshTokenRepo, cfg.Auth.CleanupInterval)
	tokenCleanupService.Start()
	defer tokenCleanupService.Stop()

	r := router.SetupRouter(router.Services{
		Auth:     authService,
		Audience: audienceService,
		Campaign: campaignService,
		History:  historyService,
		Delivery: deliveryService,
		Vendor:   vendorService,
		Customer: customerService,
		Order:    orderService,
		Excel:    excel.NewExcelService(),
		SSEHub:   sseHub,
	}, cfg.Delivery.WebhookSecret)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", cfg.Port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop producers of terminal transitions before the consumers
	sweeper.Stop()
	queue.Stop()

	logrus.Info("Server exited properly")
}

// newDeliveryQueue uses RabbitMQ when configured and reachable, otherwise an in-process queue
func newDeliveryQueue(cfg *config.Config) services.DeliveryQueue {
	if cfg.RabbitMQ.Host != "" {
		queue, err := services.NewRabbitMQQueue(cfg.RabbitMQ, cfg.Delivery.Workers)
		if err == nil {
			logrus.Infof("Delivery queue: RabbitMQ %s", cfg.RabbitMQ.Queue)
			return queue
		}
		logrus.Warnf("Failed to initialize RabbitMQ, using in-process delivery queue: %v", err)
	}
	logrus.Infof("Delivery queue: in-process with %d workers", cfg.Delivery.Workers)
	return services.NewChannelQueue(cfg.Delivery.Workers, cfg.Delivery.QueueBuffer)
}

func configureLogging(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
