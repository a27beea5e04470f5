// Package store persists registered schemas in PostgreSQL and serves them to
// the ingestion path through a Redis read-through cache.
package store

import (
	"context"

	"github.com/graphconnect/connector-platform/internal/schema"
)

// SchemaStore holds the registered schema for each external connection.
type SchemaStore interface {
	// GetSchema returns the registered schema for a connection, or
	// apperrors.ErrSchemaNotFound when none was published yet.
	GetSchema(ctx context.Context, connectionID string) (schema.SchemaConfiguration, error)
	// PublishSchema registers (or replaces) the schema for cfg.ConnectionID.
	PublishSchema(ctx context.Context, cfg schema.SchemaConfiguration) error
}
