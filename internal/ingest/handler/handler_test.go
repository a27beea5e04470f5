package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/internal/schema"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
)

// fakeStore serves one in-memory schema per connection.
type fakeStore struct {
	schemas map[string]schema.SchemaConfiguration
}

func (s *fakeStore) GetSchema(ctx context.Context, connectionID string) (schema.SchemaConfiguration, error) {
	cfg, ok := s.schemas[connectionID]
	if !ok {
		return schema.SchemaConfiguration{}, apperrors.ErrSchemaNotFound
	}
	return cfg, nil
}

func (s *fakeStore) PublishSchema(ctx context.Context, cfg schema.SchemaConfiguration) error {
	if s.schemas == nil {
		s.schemas = make(map[string]schema.SchemaConfiguration)
	}
	s.schemas[cfg.ConnectionID] = cfg
	return nil
}

// fakeQueue records enqueued items.
type fakeQueue struct {
	mu    sync.Mutex
	items []*ingest.NormalizedItem
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, item *ingest.NormalizedItem) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return nil
}

// fakeDeleteQueue records queued deletions.
type fakeDeleteQueue struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (q *fakeDeleteQueue) EnqueueDelete(ctx context.Context, connectionID, itemID string) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	q.deleted = append(q.deleted, itemID)
	q.mu.Unlock()
	return nil
}

// fakeSink records upserts and deletions.
type fakeSink struct {
	mu       sync.Mutex
	upserted []string
	deleted  []string
	err      error
}

func (s *fakeSink) Upsert(ctx context.Context, item *ingest.NormalizedItem) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.upserted = append(s.upserted, item.ID)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Delete(ctx context.Context, connectionID, itemID string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, itemID)
	s.mu.Unlock()
	return nil
}

func productSchema() schema.SchemaConfiguration {
	return schema.NewConfiguration("products", []schema.FieldDefinition{
		{Name: "title", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.LabelTitle},
		{Name: "url", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.LabelURL},
		{Name: "price", Type: schema.TypeDouble, IsRetrievable: true},
		{Name: "inStock", Type: schema.TypeBoolean, IsRetrievable: true},
	})
}

type fixture struct {
	handler *Handler
	mux     *http.ServeMux
	store   *fakeStore
	queue   *fakeQueue
	deletes *fakeDeleteQueue
	sink    *fakeSink
}

func newFixture() *fixture {
	store := &fakeStore{schemas: map[string]schema.SchemaConfiguration{"products": productSchema()}}
	queue := &fakeQueue{}
	deletes := &fakeDeleteQueue{}
	sink := &fakeSink{}
	aligner := ingest.NewAligner(ingest.AlignerConfig{})
	batch := ingest.NewBatchSubmitter(aligner, sink, 2, nil)

	h := New(store, aligner, batch, queue, deletes, sink, 5, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{handler: h, mux: mux, store: store, queue: queue, deletes: deletes, sink: sink}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestInferSchemaEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/schema/infer",
		`{"id": "1", "name": "Widget", "price": 19.99, "createdDate": "2024-01-01"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["isValid"])

	fields := body["fields"].([]any)
	require.Len(t, fields, 3)
	first := fields[0].(map[string]any)
	assert.Equal(t, "name", first["name"])
	assert.Equal(t, "String", first["type"])
	assert.Equal(t, "title", first["semanticLabel"])
}

func TestInferSchemaEndpointRejectsInvalidJSON(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/schema/infer", `{"broken": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchemaEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/connections/products/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "products", body["connectionId"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "price")
}

func TestGetSchemaEndpointDefaultsWhenUnregistered(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/connections/unknown/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "url")
	assert.Contains(t, fields, "lastUpdated")
}

func TestIngestEndpointQueuesItem(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/connections/products/items",
		`{"id": "p-1", "title": "Widget", "isActive": true}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "p-1", body["id"])
	assert.Equal(t, "queued", body["status"])
	assert.NotEmpty(t, body["warnings"])

	require.Len(t, f.queue.items, 1)
	item := f.queue.items[0]
	assert.Equal(t, "p-1", item.ID)
	assert.Equal(t, "products", item.ConnectionID)
	assert.Equal(t, true, item.Properties["inStock"])
}

func TestIngestEndpointMissingID(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/connections/products/items", `{"title": "no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.items)
}

func TestIngestEndpointQueueUnavailable(t *testing.T) {
	f := newFixture()
	f.queue.err = apperrors.New(apperrors.ErrUpstream, 502, "broker down")
	rec := f.do(t, http.MethodPost, "/api/v1/connections/products/items", `{"id": "p-1", "title": "x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestBatchEndpoint(t *testing.T) {
	f := newFixture()
	body := `{"documents": [
		{"id": "p-1", "title": "one"},
		{"title": "missing id"},
		{"id": "p-3", "title": "three"}
	]}`
	rec := f.do(t, http.MethodPost, "/api/v1/connections/products/items:batch", body)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, float64(2), got["successCount"])
	assert.Equal(t, float64(1), got["errorCount"])
	assert.Len(t, f.sink.upserted, 2)
}

func TestIngestBatchEndpointSizeLimits(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/connections/products/items:batch", `{"documents": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var docs []string
	for i := 0; i < 6; i++ {
		docs = append(docs, fmt.Sprintf(`{"id": "p-%d"}`, i))
	}
	over := `{"documents": [` + strings.Join(docs, ",") + `]}`
	rec = f.do(t, http.MethodPost, "/api/v1/connections/products/items:batch", over)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.sink.upserted)
}

func TestDeleteItemEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodDelete, "/api/v1/connections/products/items/p-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"p-1"}, f.sink.deleted)
}

func TestDeleteItemEndpointQueuesWhenSinkUnavailable(t *testing.T) {
	f := newFixture()
	f.sink.err = apperrors.New(apperrors.ErrUpstream, 502, "sink unavailable")
	rec := f.do(t, http.MethodDelete, "/api/v1/connections/products/items/p-1", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", decodeBody(t, rec)["status"])
	assert.Equal(t, []string{"p-1"}, f.deletes.deleted)
}

func TestDeleteItemEndpointFailsWhenQueueAlsoDown(t *testing.T) {
	f := newFixture()
	f.sink.err = apperrors.New(apperrors.ErrUpstream, 502, "sink unavailable")
	f.deletes.err = apperrors.New(apperrors.ErrUpstream, 502, "broker down")
	rec := f.do(t, http.MethodDelete, "/api/v1/connections/products/items/p-1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
