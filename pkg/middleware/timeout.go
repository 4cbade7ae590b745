package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout enforces an upper bound on request handling time. When the
// deadline passes before the handler produces any output, the client gets a
// 504 and anything the handler writes afterwards is discarded.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				if gw.expire() {
					slog.Warn("request deadline exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"limit", limit,
					)
					http.Error(w, `{"error":"request timeout"}`, http.StatusGatewayTimeout)
				}
			}
		})
	}
}

// guardedWriter serializes access to the underlying writer so a handler
// finishing late cannot interleave with the timeout response.
type guardedWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	wrote   bool
	expired bool
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return
	}
	g.wrote = true
	g.ResponseWriter.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return len(b), nil
	}
	g.wrote = true
	return g.ResponseWriter.Write(b)
}

// expire marks the writer as past deadline and reports whether the timeout
// response should still be sent.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	return !g.wrote
}
