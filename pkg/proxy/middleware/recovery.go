package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/esproxy/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// response with a JSON error body. The panic is logged with its stack trace.
//
// http.ErrAbortHandler is re-raised so the server aborts the connection, which
// is how an interrupted streamed response is signalled to the client.
//
// Example usage:
//
//	handler = RecoveryMiddleware(logger)(handler)
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				types.WriteError(w, http.StatusInternalServerError, types.MessageInternal)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
