package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/adapter/grpc/server"
	"github.com/seu-repo/terra-assistant/internal/adapter/http/fiber/router"
	"github.com/seu-repo/terra-assistant/internal/adapter/queue"
	wsAdapter "github.com/seu-repo/terra-assistant/internal/adapter/websocket"
	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/health"
	"github.com/seu-repo/terra-assistant/pkg/config"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("Starting TERRA assistant",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	endpoint := ""
	if cfg.OpenTelemetry.Enabled {
		endpoint = cfg.OpenTelemetry.Endpoint
	}
	shutdownTracer, err := telemetry.InitTracer(rootCtx, cfg.OpenTelemetry.ServiceName, cfg.App.Version, endpoint, cfg.OpenTelemetry.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	// 4. Resolve secrets from Vault
	if err := resolveSecrets(rootCtx, cfg, logger); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}

	// 5. Open the command store
	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	// 6. Initialize the dialog cache
	dialogCache, err := openCache(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer dialogCache.Close()

	// 7. Initialize the message queue and the update hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := wsAdapter.NewHub(logger)
	go hub.Run(hubCtx)

	messageQueue, err := queue.New(cfg.Queue.Provider, cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	var events ports.EventPublisher = hub
	var queuePinger health.Pinger
	if messageQueue != nil {
		defer messageQueue.Close()
		events = messageQueue
		queuePinger = messageQueue
		if err := messageQueue.Subscribe(cfg.Queue.Subject, hub.HandleEvent); err != nil {
			logger.Fatal("Failed to subscribe to command events", zap.Error(err))
		}
	}

	// 8. Assemble the assistant
	app, err := buildAssistant(cfg, store, dialogCache, events, newTranscriber(cfg.Transcription, logger), logger)
	if err != nil {
		logger.Fatal("Failed to build assistant", zap.Error(err))
	}

	// 9. Health checks
	healthService := health.NewService(&health.Config{
		Version:  cfg.App.Version,
		DB:       store.DB,
		Cache:    dialogCache,
		Queue:    queuePinger,
		Sessions: app.sessions.Len,
	}, logger)

	// 10. HTTP and WebSocket server
	httpApp := router.New(router.Deps{
		Assistant: app.assistant,
		Tasks:     store.Tasks,
		Health:    healthService,
		Hub:       hub,
		Config:    cfg,
		Log:       logger,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := httpApp.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 11. gRPC server
	var grpcServer *server.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer = server.NewGRPCServer(app.assistant, logger)
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// 12. Graceful Shutdown
	select {
	case <-rootCtx.Done():
		logger.Info("Shutting down server...")
	case err := <-errCh:
		logger.Error("Server failed, shutting down", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.ShutdownTimeout)
	defer cancel()

	if err := httpApp.ShutdownWithContext(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := app.dispatcher.Close(ctx); err != nil {
		logger.Warn("Pending command records were not saved", zap.Error(err))
	}
	stopHub()
	if err := shutdownTracer(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Error shutting down tracer provider", zap.Error(err))
	}

	logger.Info("Server exited gracefully", zap.Duration("shutdown_budget", cfg.Dispatch.ShutdownTimeout))
}
