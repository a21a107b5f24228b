package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ens-relayer/relayer_service/internal/api/routes"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/config"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/di"
	"github.com/ens-relayer/relayer_service/internal/workers/balance_monitor"
	"github.com/ens-relayer/relayer_service/pkg/graceful"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/tracing"
)

// @title ENS Reverse Relayer API
// @version 1.0
// @description Fans a signed ENS reverse-name record out to every supported L2
// @BasePath /

const chainVerifyTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := di.NewContainer(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	if cfg.Relayer.VerifyChainsOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), chainVerifyTimeout)
		healthy := container.VerifyChains(ctx)
		cancel()
		log.Info("Chain verification finished", "healthy", healthy, "total", container.Registry.Len())
	}

	monitor := balance_monitor.NewWorker(
		container.RelayerService,
		cfg.Relayer.BalanceCheckSchedule,
		log.Zap(),
		container.Sweepers...,
	)
	if err := monitor.Start(); err != nil {
		log.Fatal("Failed to start balance monitor", "error", err)
	}

	router := routes.SetupRoutes(container)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"chains", container.Registry.Len(),
			"relayer_configured", container.ReverseService.Configured(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Components stop in reverse registration order after the server drains
	shutdown := graceful.NewShutdownManager(server, graceful.DefaultTimeout, log)
	shutdown.Register(graceful.ShutdownFunc(func(timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return tracingShutdown(ctx)
	}))
	shutdown.Register(graceful.ShutdownFunc(func(time.Duration) error {
		return container.Close()
	}))
	shutdown.Register(monitor)

	shutdown.WaitForShutdown()
}
