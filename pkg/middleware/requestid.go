package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jayc-10/corpusearch/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a unique ID, honouring an incoming
// X-Request-ID header when present. The ID is echoed in the response and
// stored in the request context for logging.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			ctx := logger.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stored in ctx, or "" if none.
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFrom(ctx)
}
