// Command ingestd starts the document ingestion HTTP service.
//
// The service accepts raw JSON documents via POST
// /api/v1/connections/{connectionID}/items, aligns them against the
// connection's registered schema, and queues them for submission to the
// external item store. A synchronous batch endpoint submits directly to the
// store with bounded concurrency. Health probes live at /health/live and
// /health/ready.
//
// Usage:
//
//	go run ./cmd/ingestd [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/internal/ingest/handler"
	"github.com/graphconnect/connector-platform/internal/ingest/queue"
	"github.com/graphconnect/connector-platform/internal/sink"
	"github.com/graphconnect/connector-platform/internal/store"
	"github.com/graphconnect/connector-platform/pkg/config"
	"github.com/graphconnect/connector-platform/pkg/health"
	"github.com/graphconnect/connector-platform/pkg/kafka"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/middleware"
	"github.com/graphconnect/connector-platform/pkg/postgres"
	"github.com/graphconnect/connector-platform/pkg/redis"
)

// main loads configuration, connects to PostgreSQL, Redis, and Kafka, wires
// up the alignment pipeline and HTTP surface, and starts the server.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port, "connection_id", cfg.Connector.ConnectionID)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to redis")

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	schemas := store.NewCachedStore(store.NewPostgresStore(db), redisClient, cfg.Redis, m)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ItemSubmit)
	defer producer.Close()
	deleteProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ItemDelete)
	defer deleteProducer.Close()
	slog.Info("kafka producers initialized",
		"submit_topic", cfg.Kafka.Topics.ItemSubmit,
		"delete_topic", cfg.Kafka.Topics.ItemDelete,
	)

	sinkClient := sink.NewClient(cfg.Sink, m)
	aligner := ingest.NewAligner(ingest.AlignerConfig{
		URLTemplate:     cfg.Connector.URLTemplate,
		IconURL:         cfg.Connector.IconURL,
		DefaultACLs:     defaultACLs(cfg.Connector),
		MaxContentBytes: cfg.Ingestion.MaxContentBytes,
	})
	batch := ingest.NewBatchSubmitter(aligner, sinkClient, cfg.Ingestion.MaxConcurrent, m)
	h := handler.New(schemas, aligner, batch, queue.NewPublisher(producer), queue.NewDeletePublisher(deleteProducer), sinkClient, cfg.Ingestion.MaxBatchSize, m)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var root http.Handler = mux
	root = middleware.Timeout(cfg.Server.WriteTimeout)(root)
	if m != nil {
		root = middleware.Metrics(m)(root)
	}
	root = middleware.RequestID(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			metricsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsShutdown(metricsCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

// defaultACLs converts configured ACL entries into the aligner's shape.
func defaultACLs(cfg config.ConnectorConfig) []ingest.ACLEntry {
	entries := make([]ingest.ACLEntry, 0, len(cfg.DefaultACLs))
	for _, acl := range cfg.DefaultACLs {
		entries = append(entries, ingest.ACLEntry{
			Type:       acl.Type,
			Value:      acl.Value,
			AccessType: acl.AccessType,
		})
	}
	return entries
}
