package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/metrics"
)

// requestLogger logs method, path, status and latency for every request and
// records it against metrics.APIRequestsTotal/APIRequestDuration (labeled by
// RPC path, the closest analogue this JSON-over-HTTP surface has to the
// teacher's gRPC method names), replacing the teacher's gRPC
// ReadOnlyInterceptor with the chi-idiomatic middleware shape — this domain
// has no read-only Unix socket listener to restrict, so the only
// cross-cutting concerns left are logging, metrics and recovery.
func requestLogger(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			metrics.APIRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			metrics.APIRequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())

			log.WithComponent(component).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", elapsed).
				Msg("request")
		})
	}
}

// errorResponse is the body written on any non-2xx response, matching the
// RPC surfaces' "JSON over HTTP POST" contract (spec.md section 6): a
// downstream caller gets a structured error instead of a bare status code.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
