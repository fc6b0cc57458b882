package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"commuteos-backend/pkg/api"

	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						zap.String("request_id", GetRequestIDFromRequest(r)),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("panic", fmt.Sprint(rec)),
						zap.ByteString("stack", debug.Stack()),
					)
					// Nothing can be done once the response has started.
					if !sw.wroteHeader {
						api.Error(w, http.StatusInternalServerError, api.CodeInternal, "Internal server error")
					}
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
