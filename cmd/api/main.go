package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadrail/leadrail/cmd/mainconfig"
	"github.com/leadrail/leadrail/internal/api/router"
	"github.com/leadrail/leadrail/internal/app/bootstrap"
	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	appconfig "github.com/leadrail/leadrail/internal/config"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/http/handlers"
	"github.com/leadrail/leadrail/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("api")
	logger.Info("starting leadrail API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()
	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	pipeline, err := bootstrap.BuildPipeline(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() { _ = pipeline.Close() }()

	var publisher *conversation.Publisher
	if cfg.UseMemoryQueue {
		queue := conversation.NewMemoryQueue(256)
		publisher = conversation.NewPublisher(queue, logger)
		// Drain in-process so the memory queue works without a separate
		// worker binary.
		worker := conversation.NewWorker(queue, pipeline.Service, logger)
		go worker.Run(ctx)
		logger.Info("using in-memory pipeline queue")
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := conversation.NewSQSQueue(conversation.SQSQueueConfig{
			Client:   sqs.NewFromConfig(awsCfg),
			QueueURL: cfg.PipelineQueueURL,
		})
		publisher = conversation.NewPublisher(queue, logger)
	}

	chatHandler := handlers.NewChatWebhookHandler(handlers.ChatWebhookConfig{
		Adapter:       whatsapp.NewAdapter(cfg.TenantID, pipeline.Transcriber),
		Guard:         pipeline.Processed,
		Publisher:     publisher,
		DebounceQuiet: cfg.DebounceQuiet,
		Metrics:       pipeline.Metrics,
		Logger:        logger,
	})
	smsHandler := handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{
		TenantID:      cfg.TenantID,
		Secret:        cfg.SMSWebhookSecret,
		Guard:         pipeline.Processed,
		Publisher:     publisher,
		DebounceQuiet: cfg.DebounceQuiet,
		Metrics:       pipeline.Metrics,
		Logger:        logger,
	})
	voiceHandler := handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{
		Secret:   cfg.VoiceWebhookSecret,
		TenantID: cfg.TenantID,
		Timezone: cfg.DefaultTimezone,
		Calls:    pipeline.Calls,
		Leads:    pipeline.Leads,
		Guard:    pipeline.Processed,
		Writer:   pipeline.Writer,
		Metrics:  pipeline.Metrics,
		Logger:   logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		TenantID:       cfg.TenantID,
		VoiceWebhook:   voiceHandler,
		ChatWebhook:    chatHandler,
		SMSWebhook:     smsHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
