package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/graphconnect/connector-platform/internal/schema"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/postgres"
)

// PostgresStore keeps one serialized SchemaConfiguration per connection in
// the connector_schemas table:
//
//	CREATE TABLE connector_schemas (
//	    connection_id TEXT PRIMARY KEY,
//	    document      JSONB NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

var _ SchemaStore = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over an open client.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.WithComponent("schema-store"),
	}
}

// GetSchema loads the registered schema for a connection.
func (s *PostgresStore) GetSchema(ctx context.Context, connectionID string) (schema.SchemaConfiguration, error) {
	var document []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT document FROM connector_schemas WHERE connection_id = $1`, connectionID,
	).Scan(&document)
	if err == sql.ErrNoRows {
		return schema.SchemaConfiguration{}, apperrors.Newf(apperrors.ErrSchemaNotFound, 404, "no schema registered for connection %s", connectionID)
	}
	if err != nil {
		return schema.SchemaConfiguration{}, fmt.Errorf("querying schema for %s: %w", connectionID, err)
	}

	var cfg schema.SchemaConfiguration
	if err := json.Unmarshal(document, &cfg); err != nil {
		return schema.SchemaConfiguration{}, fmt.Errorf("decoding schema for %s: %w", connectionID, err)
	}
	cfg.ConnectionID = connectionID
	return cfg, nil
}

// PublishSchema upserts the schema document for cfg.ConnectionID.
func (s *PostgresStore) PublishSchema(ctx context.Context, cfg schema.SchemaConfiguration) error {
	if cfg.ConnectionID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "schema has no connection id")
	}
	document, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding schema for %s: %w", cfg.ConnectionID, err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO connector_schemas (connection_id, document, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (connection_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
			cfg.ConnectionID, document)
		return err
	})
	if err != nil {
		return fmt.Errorf("publishing schema for %s: %w", cfg.ConnectionID, err)
	}
	s.logger.Info("schema published",
		"connection_id", cfg.ConnectionID,
		"fields", len(cfg.Fields),
	)
	return nil
}
