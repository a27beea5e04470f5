// Package handler exposes the ingestion and schema HTTP surface: single and
// batch item submission, item deletion, schema inspection, and dry-run
// schema inference.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/internal/schema/infer"
	"github.com/graphconnect/connector-platform/internal/schema/labels"
	"github.com/graphconnect/connector-platform/internal/schema/validate"
	"github.com/graphconnect/connector-platform/internal/store"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/resilience"
)

// maxRequestBody bounds a single request body read (covers the 4MB content
// limit the sink enforces, plus envelope overhead).
const maxRequestBody = 8 << 20

// ItemQueue enqueues aligned items for asynchronous submission.
type ItemQueue interface {
	Enqueue(ctx context.Context, item *ingest.NormalizedItem) error
}

// DeleteQueue enqueues item deletions for the delete worker.
type DeleteQueue interface {
	EnqueueDelete(ctx context.Context, connectionID, itemID string) error
}

// Handler wires the ingestion pipeline into HTTP endpoints.
type Handler struct {
	schemas      store.SchemaStore
	aligner      *ingest.Aligner
	batch        *ingest.BatchSubmitter
	queue        ItemQueue
	deletes      DeleteQueue
	sink         ingest.ItemSink
	maxBatchSize int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates a Handler. m may be nil when metrics are disabled.
func New(schemas store.SchemaStore, aligner *ingest.Aligner, batch *ingest.BatchSubmitter, queue ItemQueue, deletes DeleteQueue, sink ingest.ItemSink, maxBatchSize int, m *metrics.Metrics) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	return &Handler{
		schemas:      schemas,
		aligner:      aligner,
		batch:        batch,
		queue:        queue,
		deletes:      deletes,
		sink:         sink,
		maxBatchSize: maxBatchSize,
		metrics:      m,
		logger:       logger.WithComponent("ingest-handler"),
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/schema/infer", h.InferSchema)
	mux.HandleFunc("GET /api/v1/connections/{connectionID}/schema", h.GetSchema)
	mux.HandleFunc("POST /api/v1/connections/{connectionID}/items", h.Ingest)
	mux.HandleFunc("POST /api/v1/connections/{connectionID}/items:batch", h.IngestBatch)
	mux.HandleFunc("DELETE /api/v1/connections/{connectionID}/items/{itemID}", h.DeleteItem)
	mux.HandleFunc("GET /health", h.Health)
}

// InferSchema runs inference, labelling, and validation over a posted sample
// document without touching the store.
func (h *Handler) InferSchema(w http.ResponseWriter, r *http.Request) {
	sample, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	fields, err := infer.InferSchema(sample)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	labels.Assign(fields)
	result := validate.Schema(fields)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"fields":  fields,
		"isValid": result.IsValid,
		"errors":  result.Errors,
	})
}

// GetSchema returns the registered schema for a connection, or the documented
// default shape when none was published yet.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	connectionID := r.PathValue("connectionID")
	cfg, err := h.fetchSchema(r.Context(), connectionID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "loading schema failed")
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// Ingest aligns one raw document and queues it for asynchronous submission.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	connectionID := r.PathValue("connectionID")

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	cfg, err := h.fetchSchema(ctx, connectionID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "loading schema failed")
		return
	}

	aligned, err := h.aligner.Align(raw, cfg)
	if err != nil {
		h.observeAligned(alignOutcome(err))
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.observeAligned("ok")
	h.observeWarnings(aligned.Warnings)

	if err := h.queue.Enqueue(ctx, aligned.Item); err != nil {
		log.Error("enqueue failed", "item_id", aligned.Item.ID, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "item could not be queued")
		return
	}
	log.Info("item accepted",
		"item_id", aligned.Item.ID,
		"connection_id", connectionID,
		"warnings", len(aligned.Warnings),
	)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"id":       aligned.Item.ID,
		"status":   "queued",
		"warnings": aligned.Warnings,
	})
}

// batchRequest is the envelope for synchronous batch submission.
type batchRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

// IngestBatch aligns and submits a batch synchronously with bounded fan-out.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connectionID := r.PathValue("connectionID")

	var req batchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "batch contains no documents")
		return
	}
	if len(req.Documents) > h.maxBatchSize {
		h.writeError(w, http.StatusBadRequest, "batch exceeds maximum size")
		return
	}
	cfg, err := h.fetchSchema(ctx, connectionID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "loading schema failed")
		return
	}

	docs := make([][]byte, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = []byte(d)
	}
	result := h.batch.Submit(ctx, docs, cfg)
	h.observeWarnings(result.Warnings)
	h.writeJSON(w, http.StatusOK, result)
}

// DeleteItem removes one item from the external sink. When the sink is
// unreachable the deletion is queued for the delete worker instead of
// failing the request.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	connectionID := r.PathValue("connectionID")
	itemID := r.PathValue("itemID")

	err := h.sink.Delete(ctx, connectionID, itemID)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if errors.Is(err, apperrors.ErrUpstream) || errors.Is(err, resilience.ErrCircuitOpen) {
		if h.deletes != nil {
			if qErr := h.deletes.EnqueueDelete(ctx, connectionID, itemID); qErr == nil {
				log.Warn("sink unavailable, deletion queued", "item_id", itemID, "error", err)
				h.writeJSON(w, http.StatusAccepted, map[string]string{
					"id":     itemID,
					"status": "queued",
				})
				return
			}
		}
	}
	log.Error("delete failed", "item_id", itemID, "error", err)
	h.writeError(w, apperrors.HTTPStatusCode(err), "delete failed")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fetchSchema loads a connection's schema, degrading to the documented
// default when none is registered.
func (h *Handler) fetchSchema(ctx context.Context, connectionID string) (schema.SchemaConfiguration, error) {
	cfg, err := h.schemas.GetSchema(ctx, connectionID)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, apperrors.ErrSchemaNotFound) {
		h.logger.Warn("no schema registered, using default", "connection_id", connectionID)
		return schema.DefaultConfiguration(connectionID), nil
	}
	return schema.SchemaConfiguration{}, err
}

func alignOutcome(err error) string {
	if errors.Is(err, apperrors.ErrMissingID) {
		return "missing_id"
	}
	return "invalid_json"
}

func (h *Handler) observeAligned(outcome string) {
	if h.metrics != nil {
		h.metrics.ItemsAlignedTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) observeWarnings(warnings []ingest.Warning) {
	if h.metrics == nil {
		return
	}
	for _, w := range warnings {
		h.metrics.CoercionWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
