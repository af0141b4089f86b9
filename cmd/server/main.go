package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/auth"
	"github.com/vawtech/presence/pkg/cache"
	"github.com/vawtech/presence/pkg/config"
	"github.com/vawtech/presence/pkg/database"
	"github.com/vawtech/presence/pkg/events"
	"github.com/vawtech/presence/pkg/feed"
	"github.com/vawtech/presence/pkg/httpapi"
	"github.com/vawtech/presence/pkg/logging"
	"github.com/vawtech/presence/pkg/metrics"
	"github.com/vawtech/presence/pkg/repository"
	"github.com/vawtech/presence/pkg/services"
	"github.com/vawtech/presence/pkg/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.Info("starting presence engine", zap.String("config", cfg.String()))

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	presenceRepo := repository.NewPresenceRepository(db.GetDB())
	activityRepo := repository.NewActivityRepository(db.GetDB())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := websocket.NewHub()
	hub.SetClientGauge(m.ConnectedClients)
	hub.Start()
	defer hub.Stop()

	localCache := cache.NewLocalCache()
	defer localCache.Close()

	presenceFeed := feed.New(presenceRepo)
	dispatcher := events.NewHubDispatcher(hub)

	service := services.NewPresenceServiceFull(
		presenceRepo,
		activityRepo,
		presenceFeed,
		localCache,
		dispatcher,
		m,
	)

	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenExpiry, cfg.Auth.Issuer)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go service.RunStaleSweeper(sweepCtx, cfg.Presence.StaleSweepInterval, cfg.Presence.StaleAfter)

	server := httpapi.NewServer(cfg, db, service, hub, tokens, m, registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("graceful shutdown failed", zap.Error(err))
		return err
	}

	logging.Info("shutdown complete")
	return nil
}
