// Command provision derives a property schema from a sample JSON document,
// assigns semantic labels, validates the result, and optionally publishes it
// to the schema store for a connection.
//
// Usage:
//
//	go run ./cmd/provision -sample sample.json [-connection products] [-publish] [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/internal/schema/infer"
	"github.com/graphconnect/connector-platform/internal/schema/labels"
	"github.com/graphconnect/connector-platform/internal/schema/validate"
	"github.com/graphconnect/connector-platform/internal/store"
	"github.com/graphconnect/connector-platform/pkg/config"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/postgres"
	"github.com/graphconnect/connector-platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	samplePath := flag.String("sample", "", "path to a sample JSON document (required)")
	connectionID := flag.String("connection", "", "connection id to publish under (defaults to the configured connector)")
	publish := flag.Bool("publish", false, "publish the schema to the store after validation")
	flag.Parse()

	if *samplePath == "" {
		fmt.Fprintln(os.Stderr, "usage: provision -sample <file> [-connection <id>] [-publish]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *connectionID == "" {
		*connectionID = cfg.Connector.ConnectionID
	}

	sample, err := os.ReadFile(*samplePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read sample: %v\n", err)
		os.Exit(1)
	}

	fields, err := infer.InferSchema(sample)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema inference failed: %v\n", err)
		os.Exit(1)
	}
	labels.Assign(fields)
	printFields(fields)

	result := validate.Schema(fields)
	if !result.IsValid {
		fmt.Fprintln(os.Stderr, "\nschema is invalid:")
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", msg)
		}
		os.Exit(1)
	}
	fmt.Printf("\nschema is valid: %d fields\n", len(fields))

	if !*publish {
		return
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	schemaCfg := schema.NewConfiguration(*connectionID, fields)
	if err := store.NewPostgresStore(db).PublishSchema(ctx, schemaCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to publish schema: %v\n", err)
		os.Exit(1)
	}
	invalidateCache(ctx, cfg)
	fmt.Printf("schema published for connection %s\n", *connectionID)
}

// invalidateCache drops cached schemas so running services pick up the new
// configuration immediately instead of after the cache TTL. Best effort: a
// missing Redis only delays visibility.
func invalidateCache(ctx context.Context, cfg *config.Config) {
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: schema cache not invalidated: %v\n", err)
		return
	}
	defer redisClient.Close()

	if n, err := store.FlushSchemaCache(ctx, redisClient); err != nil {
		fmt.Fprintf(os.Stderr, "warning: schema cache not invalidated: %v\n", err)
	} else if n > 0 {
		fmt.Printf("invalidated %d cached schema(s)\n", n)
	}
}

// printFields renders the inferred fields as an aligned table.
func printFields(fields []schema.FieldDefinition) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tLABEL\tSEARCH\tQUERY\tRETRIEVE\tREFINE\tPATH")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%v\t%v\t%s\n",
			f.Name, f.Type, f.SemanticLabel,
			f.IsSearchable, f.IsQueryable, f.IsRetrievable, f.IsRefinable,
			f.JSONPath,
		)
	}
	w.Flush()
}
