/*
metrics.go - Prometheus instrumentation and request throttling

PURPOSE:
  HTTP-level observability and protection for the loyalty API:
  - Request counters and latency histograms, labeled by route pattern so
    /memberships/42 and /memberships/43 share a series
  - Domain counters for credited points and completed redemptions
  - A token-bucket rate limiter applied ahead of the handlers

METRICS:
  loyalty_http_requests_total{method,route,status}
  loyalty_http_request_duration_seconds{route}
  loyalty_points_credited_total
  loyalty_redemptions_total

SEE ALSO:
  - server.go: Mounts the middleware and the /metrics endpoint
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_http_requests_total",
		Help: "Total HTTP requests by method, route pattern, and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loyalty_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	pointsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_credited_total",
		Help: "Total points credited across all memberships.",
	})

	redemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_redemptions_total",
		Help: "Total completed reward redemptions.",
	})
)

// instrument records a counter and latency sample per request. It must run
// inside the chi router so the route pattern is resolved.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// throttle rejects requests beyond the configured rate with 429. The bucket
// is global, not per-client: the service sits behind a gateway that has
// already authenticated the caller.
func throttle(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
