// Package sink implements the ItemSink contract against the external
// connection's REST surface. Calls are wrapped in a circuit breaker so a
// failing downstream store sheds load quickly instead of piling up requests.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/graphconnect/connector-platform/internal/ingest"
	"github.com/graphconnect/connector-platform/pkg/config"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/metrics"
	"github.com/graphconnect/connector-platform/pkg/resilience"
)

// Client talks to the external item store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ ingest.ItemSink = (*Client)(nil)

// NewClient creates a sink client from configuration. m may be nil when
// metrics are disabled.
func NewClient(cfg config.SinkConfig, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: resilience.NewCircuitBreaker("item-sink", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange: func(name string, _, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		}),
		metrics: m,
		logger:  logger.WithComponent("sink-client"),
	}
}

// itemPayload is the wire shape the external store accepts for an upsert.
type itemPayload struct {
	ID         string            `json:"id"`
	Properties map[string]any    `json:"properties"`
	Content    itemContent       `json:"content"`
	ACL        []ingest.ACLEntry `json:"acl"`
}

type itemContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Upsert creates or replaces one item in the external store.
func (c *Client) Upsert(ctx context.Context, item *ingest.NormalizedItem) error {
	body, err := json.Marshal(itemPayload{
		ID:         item.ID,
		Properties: item.Properties,
		Content:    itemContent{Type: "text", Value: item.Content},
		ACL:        item.ACL,
	})
	if err != nil {
		return fmt.Errorf("marshaling item %s: %w", item.ID, err)
	}
	url := fmt.Sprintf("%s/connections/%s/items/%s", c.baseURL, item.ConnectionID, item.ID)
	return c.do(ctx, http.MethodPut, "upsert", url, body)
}

// Delete removes one item from the external store. Deleting an item the
// store never saw is not an error.
func (c *Client) Delete(ctx context.Context, connectionID, itemID string) error {
	url := fmt.Sprintf("%s/connections/%s/items/%s", c.baseURL, connectionID, itemID)
	err := c.do(ctx, http.MethodDelete, "delete", url, nil)
	if err != nil && apperrors.HTTPStatusCode(err) == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, operation, url string, body []byte) error {
	start := time.Now()
	err := c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("building %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.Newf(apperrors.ErrUpstream, http.StatusBadGateway, "%s request failed: %v", operation, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.Newf(apperrors.ErrUpstream, resp.StatusCode, "%s returned %d: %s", operation, resp.StatusCode, string(detail))
	})

	if c.metrics != nil {
		c.metrics.SinkRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Error("sink request failed", "operation", operation, "url", url, "error", err)
	}
	return err
}
