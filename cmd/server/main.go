package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice-api/config"
	"backoffice-api/internal/api"
	"backoffice-api/internal/auth"
	"backoffice-api/internal/broker"
	"backoffice-api/internal/redisclient"
	"backoffice-api/internal/service"
	"backoffice-api/internal/store"
	"backoffice-api/internal/util"
	"backoffice-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting back-office API")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		log.Fatalf("Invalid auth configuration: %v", err)
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.Migrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Business.ProductCacheTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)

	orderService := service.NewOrderService(db, redisClient, redisClient, eventPublisher, cfg.Business.IdempotencyLockTTL)
	reportService := service.NewReportService(db, cfg.Business.SalesExcludedStatuses, cfg.Business.RecentOrdersDefault)
	productService := service.NewProductService(db, redisClient)
	customerService := service.NewCustomerService(db)
	authService := service.NewAuthService(db, issuer, cfg.Auth.DefaultRole)
	restockService := service.NewRestockService(db)

	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("Failed to seed admin user", zap.Error(err))
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	restockWorker := worker.NewRestockWorker(consumer, restockService)
	go func() {
		if err := restockWorker.Start(workerCtx); err != nil {
			logger.Error("Restock worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Orders:    orderService,
		Reports:   reportService,
		Products:  productService,
		Customers: customerService,
		Auth:      authService,
		Restock:   restockService,
	}, issuer, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := restockWorker.Stop(); err != nil {
		logger.Warn("Error stopping restock worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
