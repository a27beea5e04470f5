// Package queue publishes aligned items onto the Kafka submission topic so
// the submit worker can push them into the external sink asynchronously.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/pkg/kafka"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/resilience"
)

// defaultPublishTimeout bounds one broker round trip so a stalled broker
// cannot hold an ingest request open indefinitely.
const defaultPublishTimeout = 5 * time.Second

// Publisher enqueues normalized items for asynchronous submission.
type Publisher struct {
	producer *kafka.Producer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPublisher wraps a Kafka producer bound to the item-submit topic.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		timeout:  defaultPublishTimeout,
		logger:   logger.WithComponent("item-queue"),
	}
}

// Enqueue publishes one aligned item, keyed by item id so repeated
// submissions of the same item land on the same partition in order.
func (p *Publisher) Enqueue(ctx context.Context, item *ingest.NormalizedItem) error {
	err := resilience.WithTimeout(ctx, p.timeout, "queue-enqueue", func(ctx context.Context) error {
		return p.producer.Publish(ctx, kafka.Event{Key: item.ID, Value: item})
	})
	if err != nil {
		return err
	}
	p.logger.Debug("item enqueued", "item_id", item.ID, "connection_id", item.ConnectionID)
	return nil
}

// EnqueueBatch publishes several aligned items in one write.
func (p *Publisher) EnqueueBatch(ctx context.Context, items []*ingest.NormalizedItem) error {
	events := make([]kafka.Event, 0, len(items))
	for _, item := range items {
		events = append(events, kafka.Event{Key: item.ID, Value: item})
	}
	return resilience.WithTimeout(ctx, p.timeout, "queue-enqueue-batch", func(ctx context.Context) error {
		return p.producer.PublishBatch(ctx, events)
	})
}

// DeleteEvent is the wire shape of one queued item deletion.
type DeleteEvent struct {
	ConnectionID string `json:"connectionId"`
	ItemID       string `json:"itemId"`
}

// DeletePublisher enqueues item deletions for the delete worker, used when
// the sink cannot be reached synchronously.
type DeletePublisher struct {
	producer *kafka.Producer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDeletePublisher wraps a Kafka producer bound to the item-delete topic.
func NewDeletePublisher(producer *kafka.Producer) *DeletePublisher {
	return &DeletePublisher{
		producer: producer,
		timeout:  defaultPublishTimeout,
		logger:   logger.WithComponent("delete-queue"),
	}
}

// EnqueueDelete publishes one deletion, keyed by item id.
func (p *DeletePublisher) EnqueueDelete(ctx context.Context, connectionID, itemID string) error {
	event := DeleteEvent{ConnectionID: connectionID, ItemID: itemID}
	err := resilience.WithTimeout(ctx, p.timeout, "queue-enqueue-delete", func(ctx context.Context) error {
		return p.producer.Publish(ctx, kafka.Event{Key: itemID, Value: event})
	})
	if err != nil {
		return err
	}
	p.logger.Debug("deletion enqueued", "item_id", itemID, "connection_id", connectionID)
	return nil
}
