package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"receiptkeeper/internal/api"
	"receiptkeeper/internal/api/handlers"
	"receiptkeeper/internal/service"
	"receiptkeeper/pkg/config"
	"receiptkeeper/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting receiptkeeper service")

	// One connection-pooled HTTP client shared by every outbound call
	httpClient := service.NewHTTPClient()

	// Initialize clients and pipeline
	storageClient := service.NewStorageClient(httpClient, &cfg.Storage, appLogger)
	llmClient := service.NewLLMClient(httpClient, &cfg.Model, appLogger)
	tableClient := service.NewTableClient(httpClient, &cfg.Tables, appLogger)
	pipeline := service.NewPipeline(storageClient, llmClient, tableClient, &cfg.Pipeline, appLogger)
	rasterizer := service.NewRasterizer(appLogger)

	// Initialize handler and router
	webhookHandler := handlers.NewWebhookHandler(pipeline, rasterizer, appLogger)
	app := api.SetupRouter(webhookHandler)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
