package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"storefinder/internal/adapters/http/perf"
	"storefinder/internal/observability"
)

// DefaultSlowRequest is the threshold used when TimingConfig leaves it unset.
const DefaultSlowRequest = 200 * time.Millisecond

// TimingConfig wires the timing middleware to its sinks. Every field is optional.
type TimingConfig struct {
	Collector   *perf.Collector
	Metrics     *observability.Metrics
	SlowRequest time.Duration
}

// requestIDCounter is an atomic counter for request IDs.
var requestIDCounter atomic.Uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// statusWriterPool reduces allocations on the hot path.
var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// routeLabel is the matched mux pattern, so /api/stores/{id} is one series
// rather than one per store.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " unmatched"
}

// Timing returns middleware that logs and records request duration.
// Normal requests log at DEBUG; requests at or above the threshold log at WARN.
func Timing(cfg TimingConfig) func(http.Handler) http.Handler {
	threshold := cfg.SlowRequest
	if threshold <= 0 {
		threshold = DefaultSlowRequest
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := requestIDCounter.Add(1)

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				durationMs := float64(elapsed.Microseconds()) / 1000.0
				route := routeLabel(r)

				level := slog.LevelDebug
				msg := "request"
				if elapsed >= threshold {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", reqID,
					"method", r.Method,
					"path", r.URL.Path,
					"route", route,
					"status", sw.status,
					"duration_ms", durationMs,
				)

				cfg.Metrics.ObserveRequest(r.Method, route, strconv.Itoa(sw.status), elapsed)
				if cfg.Collector != nil {
					cfg.Collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       route,
						StatusCode: sw.status,
						Failed:     sw.status >= http.StatusInternalServerError,
						DurationMs: durationMs,
						Timestamp:  start,
					})
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
