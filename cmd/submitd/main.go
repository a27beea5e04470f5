// Command submitd drains the item-submit and item-delete Kafka topics and
// applies the queued operations to the external item store, retrying
// transient failures with backoff.
//
// Usage:
//
//	go run ./cmd/submitd [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphconnect/connector-platform/internal/ingest/consumer"
	"github.com/graphconnect/connector-platform/internal/sink"
	"github.com/graphconnect/connector-platform/pkg/config"
	"github.com/graphconnect/connector-platform/pkg/kafka"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting submit worker",
		"submit_topic", cfg.Kafka.Topics.ItemSubmit,
		"delete_topic", cfg.Kafka.Topics.ItemDelete,
	)

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	sinkClient := sink.NewClient(cfg.Sink, m)
	submitter := consumer.NewSubmitter(sinkClient, resilience.RetryConfig{
		MaxAttempts:  cfg.Sink.RetryMaxAttempts,
		InitialDelay: cfg.Sink.RetryInitialDelay,
		MaxDelay:     cfg.Sink.RetryMaxDelay,
	}, m)

	submitConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ItemSubmit, submitter.Handle)
	defer submitConsumer.Close()
	deleteConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ItemDelete, submitter.HandleDelete)
	defer deleteConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return submitConsumer.Start(ctx) })
	g.Go(func() error { return deleteConsumer.Start(ctx) })
	if err := g.Wait(); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}

	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	slog.Info("submit worker stopped")
}
