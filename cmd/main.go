package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caridad-cloud/allocation-service/internal/events"
	"github.com/caridad-cloud/allocation-service/internal/handler"
	"github.com/caridad-cloud/allocation-service/internal/inventory"
	"github.com/caridad-cloud/allocation-service/internal/notify"
	"github.com/caridad-cloud/allocation-service/internal/repository"
	"github.com/caridad-cloud/allocation-service/internal/service"
	"github.com/caridad-cloud/allocation-service/pkg/config"
	"github.com/caridad-cloud/allocation-service/pkg/middleware"
	pkgtls "github.com/caridad-cloud/allocation-service/pkg/tls"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	dynamoClient, err := repository.NewDynamoDBClient(cfg)
	if err != nil {
		log.Fatal("Failed to create DynamoDB client:", err)
	}
	sessionRepo := repository.NewSessionRepository(dynamoClient, cfg.SessionTableName)

	// Upstream HTTP client, mTLS when running inside the SPIRE trust domain.
	tlsConfig, err := pkgtls.LoadClientTLSConfig(&cfg.TLS, logger)
	if err != nil {
		log.Fatal("Failed to load TLS config:", err)
	}
	defer pkgtls.Cleanup()

	httpClient := &http.Client{Timeout: 15 * time.Second}
	if tlsConfig != nil {
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	donationAPI := inventory.NewClient(cfg.DonationAPIBaseURL, httpClient, logger)
	notifier := notify.NewNotifier(cfg.NotificationURL, httpClient, logger)

	var publisher service.EventPublisher
	var producer *events.KafkaProducer
	if cfg.KafkaEnabled {
		producer = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaPackageTopic, logger)
		defer producer.Close()
		publisher = producer
	}

	allocationService := service.NewAllocationService(donationAPI, sessionRepo, publisher, notifier, logger)
	allocationHandler := handler.NewAllocationHandler(allocationService, logger)

	var consumer *events.KafkaConsumer
	if cfg.KafkaEnabled {
		consumer = events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaDeliveryTopic,
			cfg.KafkaGroupID, allocationService, logger)
		consumer.Start()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.RequestID())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/allocations", allocationHandler.OpenAllocation)
		v1.POST("/allocations/:id/submit", allocationHandler.SubmitAllocation)
		v1.GET("/allocations/:id", allocationHandler.GetSession)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "healthy"})
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if consumer != nil {
		consumer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
