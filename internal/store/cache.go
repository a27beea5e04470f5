package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/pkg/config"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	pkgredis "github.com/graphconnect/connector-platform/pkg/redis"
)

const cacheKeyPrefix = "schema:"

// CachedStore is a read-through Redis cache in front of another SchemaStore.
// Concurrent misses for the same connection collapse into one backing read.
type CachedStore struct {
	inner   SchemaStore
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ SchemaStore = (*CachedStore)(nil)

// NewCachedStore wraps inner with a Redis cache. m may be nil when metrics
// are disabled.
func NewCachedStore(inner SchemaStore, client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("schema-cache"),
	}
}

// GetSchema serves from Redis when possible, falling through to the backing
// store on a miss. Cache failures degrade to the backing store, never to an
// error.
func (c *CachedStore) GetSchema(ctx context.Context, connectionID string) (schema.SchemaConfiguration, error) {
	key := cacheKeyPrefix + connectionID
	data, err := c.client.Get(ctx, key)
	if err == nil {
		var cfg schema.SchemaConfiguration
		if err := json.Unmarshal([]byte(data), &cfg); err == nil {
			c.observeHit()
			return cfg, nil
		}
		c.logger.Error("cached schema is undecodable, refetching", "key", key)
	} else if !pkgredis.IsNilError(err) {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	c.observeMiss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		cfg, err := c.inner.GetSchema(ctx, connectionID)
		if err != nil {
			return schema.SchemaConfiguration{}, err
		}
		if data, err := json.Marshal(cfg); err == nil {
			if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
				c.logger.Error("cache set failed", "key", key, "error", err)
			}
		}
		return cfg, nil
	})
	if err != nil {
		return schema.SchemaConfiguration{}, err
	}
	return v.(schema.SchemaConfiguration), nil
}

// PublishSchema writes through to the backing store and invalidates the
// cached entry.
func (c *CachedStore) PublishSchema(ctx context.Context, cfg schema.SchemaConfiguration) error {
	if err := c.inner.PublishSchema(ctx, cfg); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+cfg.ConnectionID); err != nil {
		c.logger.Error("cache invalidation failed", "connection_id", cfg.ConnectionID, "error", err)
	}
	return nil
}

func (c *CachedStore) observeHit() {
	if c.metrics != nil {
		c.metrics.SchemaCacheHitsTotal.Inc()
	}
}

func (c *CachedStore) observeMiss() {
	if c.metrics != nil {
		c.metrics.SchemaCacheMissTotal.Inc()
	}
}

// FlushSchemaCache drops every cached schema. Used after out-of-band schema
// publishes so readers do not serve stale configurations for a full TTL.
func FlushSchemaCache(ctx context.Context, client *pkgredis.Client) (int64, error) {
	return client.FlushByPattern(ctx, cacheKeyPrefix+"*")
}
