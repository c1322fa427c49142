// Package main is the entry point for the beverage stand tab service
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baely/tab/internal/balance"
	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/common/logger"
	"github.com/baely/tab/internal/config"
	"github.com/baely/tab/internal/hub"
	"github.com/baely/tab/internal/ledger"
	"github.com/baely/tab/internal/server"
	"github.com/baely/tab/internal/snapshot"
	"github.com/baely/tab/internal/stand"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(cfg.LogFormat),
	)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := cfg.Catalog()
	if err != nil {
		log.Error("Invalid beverage catalog", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// The hub is the ledger's notifier and the stream's source
	accounts := hub.New[[]ledger.Summary](
		hub.WithBuffer(cfg.Stream.Buffer),
		hub.WithLogger(log),
	)
	defer accounts.Close()

	l := ledger.New(ctx, cat, store, accounts, ledger.WithLogger(log))

	standCfg := stand.DefaultConfig()
	standCfg.Heartbeat = cfg.Stream.Heartbeat
	standCfg.Logger = log
	standService := stand.NewWithConfig(l, accounts, standCfg)

	// Bank deposits top up accounts when Up is configured
	webhookCfg := balance.DefaultConfig()
	webhookCfg.Logger = log
	if webhookCfg.Enabled() {
		webhookService := balance.NewWithConfig(webhookCfg)
		defer webhookService.Close()

		depositsCfg := stand.DefaultDepositsConfig()
		depositsCfg.Logger = log
		webhookService.RegisterHandler(stand.NewDeposits(l, depositsCfg))

		standService.Chi().Mount("/bank", webhookService.Chi())
	} else {
		log.Info("UP_ACCESS_TOKEN not set, bank deposits disabled")
	}

	// Initialize server
	serverCfg := server.DefaultConfig()
	serverCfg.Addr = cfg.Addr()
	serverCfg.Logger = log
	s := server.NewWithConfig(serverCfg)

	// Register domain handlers
	for _, host := range cfg.Hosts {
		s.RegisterDomain(host, standService.Chi())
	}

	if err := s.Run(ctx, shutdownGrace); err != nil {
		log.Error("Server failed", "error", err)
		errors.Must(err) // This will panic
	}
	log.Info("Server stopped")
}

// openStore picks Postgres when DB_HOST is set and the snapshot file otherwise
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (ledger.Store, func(), error) {
	pgCfg := snapshot.DefaultPostgresConfig()
	pgCfg.Logger = log
	if pgCfg.Enabled() {
		pg, err := snapshot.NewPostgresStore(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using postgres snapshot store", "host", pgCfg.DBHost, "database", pgCfg.DBName)
		return pg, func() {
			if err := pg.Close(); err != nil {
				log.Error("Failed to close postgres", "error", err)
			}
		}, nil
	}

	fs, err := snapshot.NewFileStore(&snapshot.FileConfig{Path: cfg.Snapshot, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using file snapshot store", "path", fs.Path())
	return fs, func() {}, nil
}
