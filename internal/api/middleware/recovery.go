package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

// RecoveryMiddleware turns a handler panic into a 500 JSON response
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			observability.LoggerFromContext(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("handler panicked")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
