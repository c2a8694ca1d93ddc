package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/api"
	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/pkg/config"
	"github.com/stitts-dev/player-enrichment/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer application.Close()

	ctx := context.Background()
	if err := application.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Background refresh keeps the directory, mapping and datasets warm
	if cfg.EnableBackgroundJobs {
		if err := application.DataFetcher.Start(); err != nil {
			log.Errorf("Failed to start data fetcher: %v", err)
		}
	} else {
		log.Info("Background jobs disabled, use POST /api/v1/refresh to load data")
	}

	router := api.NewRouter(api.RouterDeps{
		Service:  application.Service,
		Fetcher:  application.DataFetcher,
		Cache:    application.Cache,
		Breakers: application.Breakers,
		Metrics:  application.Metrics,
		Logger:   log,
	})

	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":           cfg.Port,
			"env":            cfg.Env,
			"scoring":        cfg.ScoringFormat,
			"mapped_players": application.Matcher.Len(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
