package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/netplan/internal/api"
	"github.com/andresuchdata/netplan/internal/app"
	"github.com/andresuchdata/netplan/internal/config"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetOutput(os.Stdout, false)
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	planner, err := app.New(ctx, cfg, metrics.Default())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize planner")
	}
	defer planner.Close()

	router := api.NewRouter(&api.Services{PlanService: planner.Plans}, cfg.Server.AllowedOrigins, prometheus.DefaultGatherer)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("solver", cfg.Solver.Name).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// Solves already running are not interrupted; give them a short window.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
