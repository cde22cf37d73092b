package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/metrics"
)

// Logging attaches a request-scoped logger to the context, logs every handled
// request and counts it by route pattern. m may be nil.
func Logging(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			l := log.With().
				Str("correlation_id", core.CorrelationID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Logger()

			req := r.WithContext(l.WithContext(r.Context()))
			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, req)

			// the mux fills in the matched pattern on the request it was handed
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTPRequest(route, ww.statusCode, time.Since(start))

			// probes and scrapes would drown everything else
			if (r.URL.Path == "/healthz" || r.URL.Path == "/metrics") && ww.statusCode < 400 {
				return
			}

			ev := l.Info()
			if ww.statusCode >= 500 {
				ev = l.Warn()
			}
			ev.Int("status", ww.statusCode).
				Str("route", route).
				Dur("duration", time.Since(start)).
				Msg("request.handled")
		})
	}
}

// Recover turns a panicking handler into a 500 response with the usual error body.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(r.Context()).Error().
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("panic.recovered")
				presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
