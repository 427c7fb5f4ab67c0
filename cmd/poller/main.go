package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/leadrail/leadrail/internal/app/bootstrap"
	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	appconfig "github.com/leadrail/leadrail/internal/config"
	"github.com/leadrail/leadrail/internal/cooldown"
	"github.com/leadrail/leadrail/internal/worker/poller"
	"github.com/leadrail/leadrail/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("poller")

	if !cfg.WhatsAppPollEnabled {
		logger.Info("polling disabled, nothing to do")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for the cooldown gate")
		os.Exit(1)
	}

	pipeline, err := bootstrap.BuildPipeline(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() { _ = pipeline.Close() }()

	if pipeline.WhatsApp == nil {
		logger.Error("whatsapp gateway is required for polling")
		os.Exit(1)
	}

	p := poller.New(poller.Config{
		TenantID: cfg.TenantID,
		Lister:   pipeline.WhatsApp,
		Adapter:  whatsapp.NewAdapter(cfg.TenantID, pipeline.Transcriber),
		Guard:    pipeline.Processed,
		Gate:     cooldown.NewGate(redisClient, cfg.CooldownWindow, logger),
		Pipeline: pipeline.Service,
		Marks:    poller.NewRedisMarkStore(redisClient),
		Logger:   logger,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.WhatsAppPollSpec, func() {
		if err := p.RunCycle(ctx); err != nil {
			logger.Error("poll cycle failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid poll schedule", "error", err, "spec", cfg.WhatsAppPollSpec)
		os.Exit(1)
	}

	logger.Info("starting leadrail poller", "spec", cfg.WhatsAppPollSpec, "tenant_id", cfg.TenantID)
	scheduler.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down poller...")
	cancel()
	<-scheduler.Stop().Done()
	logger.Info("poller stopped")
}
