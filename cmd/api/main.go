package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
	"github.com/wenwu/saas-platform/trialapp-service/internal/http"
	"github.com/wenwu/saas-platform/trialapp-service/internal/logging"
	"github.com/wenwu/saas-platform/trialapp-service/internal/service"
)

func main() {
	log.Println("Starting Trial App Service...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	out, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()
	gin.DefaultWriter = out

	// Initialize clients
	trialClient := client.NewTrialClient(cfg.Trial.MetadataURL, cfg.Trial.HTTPTimeout)
	scmFactory := client.NewSCMFactory(cfg.SCM.HTTPTimeout)

	// Initialize services
	trialService := service.NewTrialService(cfg, trialClient, scmFactory)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go trialService.Run(ctx, cfg.Trial.AutoRefreshInterval)

	// Initialize HTTP server
	server := http.NewServer(cfg, trialService)

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr())
		if err := server.Run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
