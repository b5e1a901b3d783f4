package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kunskapsportal-search-api/internal/app"
	"github.com/kunskapsportal-search-api/internal/config"
	"github.com/kunskapsportal-search-api/internal/handlers"
	"github.com/kunskapsportal-search-api/internal/logging"
	"github.com/kunskapsportal-search-api/internal/middleware"
	schemaconfig "github.com/kunskapsportal-search-api/pkg/schema/config"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := config.GetConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, schemaconfig.GetConfig(), logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(logging.RequestLogger(logger))
	e.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Create API group with prefix
	api := e.Group(cfg.APIPrefix)

	handlers.NewHealthHandler(application.DB, application.VectorHealth, application.VectorBackend).RegisterRoutes(api)
	handlers.NewSearchHandler(application.Search, application.Registry, logger).RegisterRoutes(api)

	var chatService handlers.ChatService
	if application.Chat != nil {
		chatService = application.Chat
	}
	handlers.NewChatHandler(chatService, application.Search, application.Registry, handlers.ChatOptions{
		Enabled:            cfg.KnowledgeBaseEnabled,
		GroundingEnabled:   cfg.GoogleGroundingEnabled,
		HistoryLimit:       cfg.ChatHistoryLimit,
		MissingCredentials: application.MissingCredentials,
	}, logger).RegisterRoutes(api)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Root health check
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    cfg.APITitle,
			"version": cfg.APIVersion,
			"status":  "running",
		})
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info("starting server", zap.String("name", cfg.APITitle), zap.String("version", cfg.APIVersion), zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", zap.Error(err))
	}
	if err := application.Close(); err != nil {
		logger.Error("error releasing resources", zap.Error(err))
	}

	logger.Info("server stopped")
}
