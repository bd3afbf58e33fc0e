package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// AccessLog writes one structured line per request to the given zerolog
// logger. Kept separate from the application logger so access logs can be
// shipped to a different sink.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			evt := log.Info()
			if wrapped.statusCode >= http.StatusInternalServerError {
				evt = log.Error()
			}
			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr)
			if id := RequestIDFrom(r.Context()); id != "" {
				evt = evt.Str("request_id", id)
			}
			if caller := Caller(r.Context()); !caller.IsZero() {
				evt = evt.Str("caller", caller.String())
			}
			evt.Msg("request")
		})
	}
}
