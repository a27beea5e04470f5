package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
)

// recordingSink captures upserts and fails on demand, tracking how many calls
// run concurrently.
type recordingSink struct {
	mu       sync.Mutex
	upserted []string
	deleted  []string
	failIDs  map[string]bool
	delay    time.Duration

	inFlight      atomic.Int32
	maxObserved   atomic.Int32
}

func (s *recordingSink) Upsert(ctx context.Context, item *NormalizedItem) error {
	cur := s.inFlight.Add(1)
	for {
		prev := s.maxObserved.Load()
		if cur <= prev || s.maxObserved.CompareAndSwap(prev, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.inFlight.Add(-1)

	if s.failIDs[item.ID] {
		return apperrors.New(apperrors.ErrUpstream, 502, "sink rejected item")
	}
	s.mu.Lock()
	s.upserted = append(s.upserted, item.ID)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Delete(ctx context.Context, connectionID, itemID string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, itemID)
	s.mu.Unlock()
	return nil
}

func batchDocs(n int) [][]byte {
	docs := make([][]byte, n)
	for i := range docs {
		docs[i] = []byte(fmt.Sprintf(`{"id": "doc-%d", "title": "Item %d"}`, i, i))
	}
	return docs
}

func TestBatchSubmitAllSucceed(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 4, nil)

	result := b.Submit(context.Background(), batchDocs(10), productSchema())

	assert.Equal(t, 10, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Empty(t, result.Errors)
	assert.Len(t, sink.upserted, 10)
}

func TestBatchSubmitIsolatesFailures(t *testing.T) {
	sink := &recordingSink{failIDs: map[string]bool{"doc-3": true}}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 4, nil)

	result := b.Submit(context.Background(), batchDocs(10), productSchema())

	assert.Equal(t, 9, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Index)
	assert.Equal(t, "doc-3", result.Errors[0].ItemID)
	assert.Len(t, sink.upserted, 9)
}

func TestBatchSubmitRecordsAlignmentFailures(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 4, nil)

	docs := [][]byte{
		[]byte(`{"id": "ok-1", "title": "fine"}`),
		[]byte(`{"title": "no id"}`),
		[]byte(`not json at all`),
		[]byte(`{"id": "ok-2", "title": "also fine"}`),
	}
	result := b.Submit(context.Background(), docs, productSchema())

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	require.Len(t, result.Errors, 2)
	// Alignment failures never reach the sink.
	assert.Len(t, sink.upserted, 2)
	for _, e := range result.Errors {
		assert.Empty(t, e.ItemID)
	}
}

func TestBatchSubmitRespectsConcurrencyLimit(t *testing.T) {
	sink := &recordingSink{delay: 10 * time.Millisecond}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 2, nil)

	result := b.Submit(context.Background(), batchDocs(12), productSchema())

	assert.Equal(t, 12, result.SuccessCount)
	assert.LessOrEqual(t, sink.maxObserved.Load(), int32(2))
}

func TestBatchSubmitCollectsWarnings(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 4, nil)

	docs := [][]byte{
		[]byte(`{"id": "1", "title": "x", "isActive": true}`),
	}
	result := b.Submit(context.Background(), docs, productSchema())

	require.Equal(t, 1, result.SuccessCount)
	kinds := warningKinds(result.Warnings)
	assert.GreaterOrEqual(t, kinds[WarnRemappedAlias], 1)
}

func TestBatchSubmitEmptyBatch(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatchSubmitter(NewAligner(AlignerConfig{}), sink, 4, nil)

	result := b.Submit(context.Background(), nil, productSchema())
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
}
