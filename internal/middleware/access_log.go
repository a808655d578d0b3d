package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/better-wallet/smart-account/internal/logger"
)

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(method, route, code string)
}

// AccessLog logs every request with its status and duration and reports it
// to obs. The route label is the matched ServeMux pattern, so path
// parameters do not explode metric cardinality.
func AccessLog(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(r.Method, route, strconv.Itoa(rec.StatusCode))
			logger.Info(r.Context(), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
