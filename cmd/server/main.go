// Command main is the entry point for the Huddle backend server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huddle/internal/bootstrap"
	"huddle/internal/config"
	"huddle/internal/middleware"
	"huddle/internal/observability"
	"huddle/internal/server"

	"github.com/joho/godotenv"
)

// @title Huddle API
// @version 1.0
// @description Friends, groups, events and notifications for the Huddle social app.

// @contact.name API Support
// @contact.email support@huddle.app

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "huddle-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	rt.Start(ctx)

	srv := server.NewServer(cfg, rt)
	app := srv.App()

	go func() {
		<-ctx.Done()
		middleware.Logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("Server shutdown error", "error", err)
		}
		if err := rt.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("Runtime shutdown error", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			middleware.Logger.Error("Tracer shutdown error", "error", err)
		}
	}()

	middleware.Logger.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
