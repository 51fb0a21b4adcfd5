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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/messaging"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("store", cfg.Store.Name))

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	var snapshotCache catalog.SnapshotCache
	if cfg.Redis.Enabled() {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Feed.CacheExpiry)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		snapshotCache = redisClient
		logger.Info("Redis catalog cache connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		snapshotCache = catalog.NewMemoryCache()
	}

	var fallback []models.Product
	if cfg.Feed.FallbackFile != "" {
		fallback, err = catalog.LoadFallback(cfg.Feed.FallbackFile)
		if err != nil {
			logger.Fatal("Failed to load fallback catalog", zap.Error(err))
		}
	}

	feedClient := &http.Client{
		Timeout:   cfg.Feed.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	source := catalog.NewSource(cfg.Feed.URL, cfg.Feed.CacheExpiry, feedClient, snapshotCache, fallback)

	var (
		eventPublisher *broker.EventPublisher
		catalogWorker  *worker.CatalogWorker
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStorefront)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStorefront, cfg.Kafka.ConsumerGroup)
		catalogWorker = worker.NewCatalogWorker(consumer, source, eventPublisher)
		go func() {
			if err := catalogWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Catalog worker error", zap.Error(err))
			}
		}()
	}

	storeInfo := service.StoreInfo{
		Name:      cfg.Store.Name,
		Address:   cfg.Store.Address,
		Hours:     cfg.Store.Hours,
		Currency:  cfg.Store.Currency.String(),
		Recipient: cfg.Messaging.Recipient,
	}
	formatter := messaging.NewFormatter(cfg.Store.Name, cfg.Store.CurrencySymbol)

	var publisher service.EventPublisher
	if eventPublisher != nil {
		publisher = eventPublisher
	}
	storefront := service.NewStorefront(source, cart.NewLedger(), formatter, publisher, storeInfo, cfg.Messaging.Endpoint)

	// warm the cache so the first visitor does not wait on the feed
	snap := source.Catalog(context.Background())
	logger.Info("Catalog ready", zap.String("origin", snap.Origin), zap.Int("products", len(snap.Products)))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(storefront)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if catalogWorker != nil {
		if err := catalogWorker.Stop(); err != nil {
			logger.Error("Error stopping catalog worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
