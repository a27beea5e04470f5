package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/tracing"
)

// defaultMaxConcurrent caps in-flight sink submissions when the caller does
// not configure a limit, respecting downstream rate limits.
const defaultMaxConcurrent = 5

// BatchSubmitter aligns a batch of raw documents against one schema snapshot
// and submits them to the sink with bounded fan-out.
type BatchSubmitter struct {
	aligner       *Aligner
	sink          ItemSink
	maxConcurrent int
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewBatchSubmitter creates a BatchSubmitter with the given concurrency cap.
// m may be nil when metrics are disabled.
func NewBatchSubmitter(aligner *Aligner, sink ItemSink, maxConcurrent int, m *metrics.Metrics) *BatchSubmitter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &BatchSubmitter{
		aligner:       aligner,
		sink:          sink,
		maxConcurrent: maxConcurrent,
		metrics:       m,
		logger:        logger.WithComponent("batch-submitter"),
	}
}

// Submit aligns and upserts every document in docs. Each document is
// independent: alignment failures and sink failures are recorded per document
// and never abort the batch. The schema snapshot is read-only for the whole
// batch.
func (b *BatchSubmitter) Submit(ctx context.Context, docs [][]byte, schemaCfg schema.SchemaConfiguration) *BatchResult {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "batch-submit")
	span.SetAttr("connection_id", schemaCfg.ConnectionID)
	span.SetAttr("documents", len(docs))
	defer span.End()

	result := &BatchResult{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrent)

	for i, doc := range docs {
		g.Go(func() error {
			aligned, err := b.aligner.Align(doc, schemaCfg)
			if err != nil {
				b.observeAligned("error")
				mu.Lock()
				result.ErrorCount++
				result.Errors = append(result.Errors, BatchError{Index: i, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			b.observeAligned("ok")

			if err := b.sink.Upsert(ctx, aligned.Item); err != nil {
				b.observeSubmitted("error")
				b.logger.Error("sink upsert failed",
					"item_id", aligned.Item.ID,
					"error", err,
				)
				mu.Lock()
				result.ErrorCount++
				result.Errors = append(result.Errors, BatchError{
					Index:   i,
					ItemID:  aligned.Item.ID,
					Message: err.Error(),
				})
				mu.Unlock()
				return nil
			}
			b.observeSubmitted("ok")

			mu.Lock()
			result.SuccessCount++
			result.Warnings = append(result.Warnings, aligned.Warnings...)
			mu.Unlock()
			return nil
		})
	}
	// Per-document errors are aggregated, never returned.
	_ = g.Wait()

	if b.metrics != nil {
		b.metrics.BatchSize.Observe(float64(len(docs)))
		b.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}
	b.logger.Info("batch submitted",
		"documents", len(docs),
		"succeeded", result.SuccessCount,
		"failed", result.ErrorCount,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result
}

func (b *BatchSubmitter) observeAligned(outcome string) {
	if b.metrics != nil {
		b.metrics.ItemsAlignedTotal.WithLabelValues(outcome).Inc()
	}
}

func (b *BatchSubmitter) observeSubmitted(status string) {
	if b.metrics != nil {
		b.metrics.ItemsSubmittedTotal.WithLabelValues(status).Inc()
	}
}
