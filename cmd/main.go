package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/app"
	"github.com/pinnity/pinnity/internal/config"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("starting pinnity", "environment", cfg.App.Environment)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("error closing connections", "error", err)
		}
	}()

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Handler:        a.Handler(),
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server exited gracefully")
}
