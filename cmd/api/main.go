package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradejournal/broker-live-sync/config"
	"github.com/tradejournal/broker-live-sync/internal/bootstrap"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/repository"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/service"
	"github.com/tradejournal/broker-live-sync/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := bootstrap.NewLogger(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.Error("broker-live-sync exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)
	bootstrap.SetGinMode(cfg.App.Environment)

	if cfg.Auth.InternalKey == "" {
		logger.Error("TJ_INTERNAL_KEY is not set; every sync request will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, db.Options{
		URL:        cfg.Database.URL,
		ServiceKey: cfg.Database.ServiceKey,
		MaxConns:   cfg.Database.MaxConns,
		MinConns:   cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	defer database.Close()

	var publisher service.Publisher = repository.NopPublisher{}
	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		publisher = repository.NewRedisPublisher(rdb)
	}

	ingestService := service.NewIngestService(
		repository.NewLiveStateRepository(database.SQL),
		publisher,
		logger,
	)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: cfg.App.ServiceName,
		Version:     cfg.App.Version,
		InternalKey: cfg.Auth.InternalKey,
		DB:          database.Pool,
		Ingester:    ingestService,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.App.Environment, "version", cfg.App.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
