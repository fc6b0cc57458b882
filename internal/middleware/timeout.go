package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"commuteos-backend/pkg/api"

	"go.uber.org/zap"
)

// Timeout bounds each request with a deadline. When it passes before the
// handler has responded, the client gets a 503 and anything the handler
// writes afterwards is discarded.
func Timeout(timeout time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan interface{}, 1)

			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						panicked <- rec
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case <-done:
			case rec := <-panicked:
				logger.Error("Panic in timed handler",
					zap.String("request_id", GetRequestIDFromRequest(r)),
					zap.String("panic", fmt.Sprint(rec)),
				)
				tw.abort(http.StatusInternalServerError, api.CodeInternal, "Internal server error")
			case <-ctx.Done():
				logger.Warn("Request timed out",
					zap.String("request_id", GetRequestIDFromRequest(r)),
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", timeout),
				)
				tw.abort(http.StatusServiceUnavailable, api.CodeTimeout, "Request timeout")
			}
		})
	}
}

// timeoutWriter gives the handler its own header map and serializes writes
// with the timeout path.
type timeoutWriter struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	h           http.Header
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.h }

func (tw *timeoutWriter) WriteHeader(status int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(status)
}

func (tw *timeoutWriter) writeHeaderLocked(status int) {
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
	tw.w.WriteHeader(status)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

// abort answers on behalf of the handler unless it has already started.
func (tw *timeoutWriter) abort(status int, code, message string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	started := tw.wroteHeader
	tw.timedOut = true
	if !started {
		api.Error(tw.w, status, code, message)
	}
}
