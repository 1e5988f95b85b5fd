// Package metrics exposes prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavenotifier_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leavenotifier_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	leavesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leavenotifier_leaves_created_total",
		Help: "Count of leave requests created",
	})

	leaveDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leavenotifier_leave_decisions_total",
		Help: "Count of leave decisions by outcome",
	}, []string{"outcome"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLeaveCreated increments the created-leaves counter.
func ObserveLeaveCreated() {
	leavesCreated.Inc()
}

// ObserveLeaveDecision increments the decision counter for the outcome.
func ObserveLeaveDecision(outcome string) {
	leaveDecisions.WithLabelValues(outcome).Inc()
}

// Middleware instruments every request with count and duration. The
// route pattern, not the raw path, is used as the label to keep
// cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		ObserveHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
