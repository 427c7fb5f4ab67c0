package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/leadrail/leadrail/cmd/mainconfig"
	"github.com/leadrail/leadrail/internal/app/bootstrap"
	appconfig "github.com/leadrail/leadrail/internal/config"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("worker")
	logger.Info("starting leadrail pipeline worker", "env", cfg.Env, "workers", cfg.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := conversation.NewSQSQueue(conversation.SQSQueueConfig{
		Client:            sqs.NewFromConfig(awsCfg),
		QueueURL:          cfg.PipelineQueueURL,
		VisibilitySeconds: 60,
	})

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		worker := conversation.NewWorker(queue, pipeline.Service, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down pipeline worker...")
	cancel()
	wg.Wait()
	logger.Info("pipeline worker stopped")
}
