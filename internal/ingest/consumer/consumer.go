// Package consumer drains the item-submit topic and upserts items into the
// external sink, retrying transient failures with exponential backoff.
package consumer

import (
	"context"
	"log/slog"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/internal/ingest/queue"
	"github.com/graphconnect/connector-platform/pkg/kafka"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/resilience"
)

// Submitter turns queued items into sink upserts.
type Submitter struct {
	sink     ingest.ItemSink
	retryCfg resilience.RetryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSubmitter creates a Submitter. m may be nil when metrics are disabled.
func NewSubmitter(sink ingest.ItemSink, retryCfg resilience.RetryConfig, m *metrics.Metrics) *Submitter {
	return &Submitter{
		sink:     sink,
		retryCfg: retryCfg,
		metrics:  m,
		logger:   logger.WithComponent("submit-consumer"),
	}
}

// Handle is the kafka.MessageHandler for the item-submit topic. Returning an
// error leaves the message uncommitted so it is redelivered.
func (s *Submitter) Handle(ctx context.Context, key []byte, value []byte) error {
	item, err := kafka.DecodeJSON[ingest.NormalizedItem](value)
	if err != nil {
		// Poison message: log and commit, redelivery cannot fix it.
		s.logger.Error("dropping undecodable item", "key", string(key), "error", err)
		return nil
	}

	err = resilience.Retry(ctx, "sink-upsert", s.retryCfg, func() error {
		return s.sink.Upsert(ctx, &item)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ItemsSubmittedTotal.WithLabelValues("error").Inc()
		}
		s.logger.Error("sink upsert failed after retries", "item_id", item.ID, "error", err)
		return err
	}
	if s.metrics != nil {
		s.metrics.ItemsSubmittedTotal.WithLabelValues("ok").Inc()
	}
	s.logger.Debug("item submitted", "item_id", item.ID)
	return nil
}

// HandleDelete is the kafka.MessageHandler for the item-delete topic, which
// carries deletions the HTTP path could not complete synchronously.
func (s *Submitter) HandleDelete(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[queue.DeleteEvent](value)
	if err != nil {
		s.logger.Error("dropping undecodable deletion", "key", string(key), "error", err)
		return nil
	}

	err = resilience.Retry(ctx, "sink-delete", s.retryCfg, func() error {
		return s.sink.Delete(ctx, event.ConnectionID, event.ItemID)
	})
	if err != nil {
		s.logger.Error("sink delete failed after retries", "item_id", event.ItemID, "error", err)
		return err
	}
	s.logger.Debug("item deleted", "item_id", event.ItemID)
	return nil
}
