package main

import (
	"care-chat/auth"
	"care-chat/codec"
	"care-chat/errors"
	"care-chat/infrastructure/realtime"
	"care-chat/internal"
	"care-chat/observability"
	"care-chat/repositories"
	"care-chat/runtime"
	"care-chat/runtime/workers"
	"care-chat/services"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the server lifecycle, so deferred
// cleanups (sessions, workers, database) run before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Chat core
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	messageCodec, err := codec.New(config.EncryptionKey, log, metrics)
	if err != nil {
		return fmt.Errorf("codec setup failed: %w", err)
	}
	messageRepository := repositories.NewMessageRepository(db, log)
	participantRepository := repositories.NewParticipantRepository(db)
	store := services.NewMessageStore(messageRepository, messageCodec, log,
		config.StoreRetryAttempts, config.StoreRetryBackoff)

	handshakeLimiter := runtime.NewRateLimiter(config.RateLimitBurst, config.RateLimitWindow)
	senderLimiter := runtime.NewRateLimiter(config.RateLimitBurst, config.RateLimitWindow)
	deliveryLimiter := runtime.NewRateLimiter(config.RateLimitBurst, config.RateLimitWindow)

	registry := runtime.NewRegistry(log, deliveryLimiter, config.HeartbeatInterval, metrics)
	router := runtime.NewRouter(store, registry, senderLimiter, log, metrics)
	gateway := runtime.NewGateway(
		auth.NewVerifier([]byte(config.JwtSecret)),
		participantRepository,
		handshakeLimiter,
		registry, store, router, log, metrics,
		runtime.SessionConfig{
			HistoryLimit:     config.HistoryLimit,
			MaxContentLength: config.MaxContentLength,
		},
	)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewLimiterJanitor(log, config.JanitorInterval,
		handshakeLimiter, senderLimiter, deliveryLimiter))
	health := observability.NewHealthChecker(log, messageRepository, registry.Len)
	sup.Add(workers.NewHealthMonitoringWorker(log, health, metrics, config.HealthInterval))
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 6. HTTP Server Setup
	gin.SetMode(gin.ReleaseMode)
	chat := realtime.NewChatHandler(ctx, gateway, realtime.ConnConfig{
		WriteTimeout: config.WriteTimeout,
		ReadLimit:    config.ReadLimit,
		IdleTimeout:  config.IdleTimeout(),
	}, config.Origins(), log)
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           realtime.NewEngine(chat, health, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", config.Address(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
		stop()
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	registry.CloseAll(errors.CloseGoingAway, "Server shutting down")
	chat.Wait()
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return serveErr
}
