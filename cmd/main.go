package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fulfill-service/internal/config"
	"fulfill-service/internal/events"
	"fulfill-service/internal/handlers"
	"fulfill-service/internal/jobs"
	"fulfill-service/internal/middleware"
	"fulfill-service/internal/repository"
	"fulfill-service/internal/services"
)

// @title Fulfill Product Catalog API
// @version 1.0.0
// @description Product catalog service with CSV bulk import and webhook notifications

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client; the product cache degrades gracefully
	// without it
	var redisClient *redis.Client
	if redisOpts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		client := redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
		} else {
			redisClient = client
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Initialize repositories
	productsRepo := repository.NewProductsRepository(db, redisClient)
	jobsRepo := repository.NewImportJobsRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	// Initialize webhook dispatcher
	dispatcher := events.NewWebhookDispatcher(webhooksRepo, cfg.WebhookTimeout, logger)

	// Initialize import pipeline
	engine := services.NewUpsertEngine(productsRepo, cfg.AtomicUpserts, logger)
	importService := services.NewImportService(jobsRepo, engine, cfg.ImportChunkSize, logger)

	// Start background import worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	worker := jobs.NewImportWorker(importService, jobsRepo, logger)
	go worker.Start(workerCtx)

	// Initialize handlers
	productsHandler := handlers.NewProductsHandler(productsRepo, dispatcher)
	importHandler := handlers.NewImportHandler(jobsRepo, worker)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksRepo, dispatcher)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// API routes
	api := router.Group("/api/v1")
	{
		products := api.Group("/products")
		{
			products.GET("", productsHandler.ListProducts)
			products.POST("", productsHandler.CreateProduct)
			products.DELETE("", productsHandler.DeleteAllProducts)

			// Import endpoints before the :id routes so "import" is not
			// captured as a product ID
			products.GET("/import", importHandler.ListImportJobs)
			products.POST("/import", importHandler.UploadImport)
			products.GET("/import/template", importHandler.GetImportTemplate)
			products.GET("/import/:id", importHandler.GetImportStatus)

			products.GET("/:id", productsHandler.GetProduct)
			products.PATCH("/:id", productsHandler.UpdateProduct)
			products.DELETE("/:id", productsHandler.DeleteProduct)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.GET("", webhooksHandler.ListWebhooks)
			webhooks.POST("", webhooksHandler.CreateWebhook)
			webhooks.GET("/:id", webhooksHandler.GetWebhook)
			webhooks.PATCH("/:id", webhooksHandler.UpdateWebhook)
			webhooks.DELETE("/:id", webhooksHandler.DeleteWebhook)
			webhooks.POST("/:id/test", webhooksHandler.TestWebhook)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Fulfill service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down fulfill-service...")

	worker.Stop()
	workerCancel()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	log.Println("Fulfill service stopped")
}
