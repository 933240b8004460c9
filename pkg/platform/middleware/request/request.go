// Package request provides request ID middleware. Every request gets a
// correlation ID (inbound X-Request-ID or a fresh UUID) that flows through
// logs and audit entries.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"crowngate/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// RequestID assigns a correlation ID to the request context and echoes it
// on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
