package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/graphconnect/connector-platform/pkg/logger"
	"github.com/graphconnect/connector-platform/pkg/tracing"
)

const requestIDHeader = "X-Request-ID"

// slowRequestThreshold is the latency above which a request's span tree is
// written to the log.
const slowRequestThreshold = 500 * time.Millisecond

// RequestID attaches a request id to the context and response headers,
// generating one when the caller did not supply it. The id doubles as the
// trace id for the request's root span; span trees of slow requests are
// logged.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logger.WithRequestID(r.Context(), id)
		ctx, span := tracing.StartSpan(ctx, r.Method+" "+r.URL.Path, id)
		next.ServeHTTP(w, r.WithContext(ctx))
		span.End()
		if span.Duration >= slowRequestThreshold {
			span.Log()
		}
	})
}
