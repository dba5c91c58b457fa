package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/readings/internal/metrics"
)

// accessLog logs one line per request and feeds the latency histogram.
// Routes are labelled by chi pattern so device ids do not explode the
// metric cardinality.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			dur := time.Since(start)

			metrics.RecordAPIRequest(r.Method, route, status, dur)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Str("from", r.RemoteAddr).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Dur("dur", dur).
				Msg("request")
		})
	}
}

// recoverer turns a panic into the generic 500 body.
func recoverer(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Interface("panic", rec).
						Str("request_id", chimiddleware.GetReqID(r.Context())).
						Msg("handler panic")
					writeError(w, r, http.StatusInternalServerError, "Unexpected error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
