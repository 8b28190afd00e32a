// Package metrics provides Prometheus instrumentation for the PartnerHub engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partnerhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RevenueEventsTotal counts inbound revenue events by outcome.
	RevenueEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "revenue_events_total",
			Help:      "Inbound revenue events by outcome (recorded, duplicate, rejected).",
		},
		[]string{"outcome"},
	)

	// CommissionTransitionsTotal counts commission status transitions.
	CommissionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "commission_transitions_total",
			Help:      "Commission record status transitions by target status and result.",
		},
		[]string{"target", "result"},
	)

	// LimitDenialsTotal counts limit-enforcer denials by resource kind.
	LimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "limit_denials_total",
			Help:      "Denied limit checks by resource kind.",
		},
		[]string{"resource"},
	)

	// EligibilityChecksTotal counts tier eligibility evaluations by outcome.
	EligibilityChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "eligibility_checks_total",
			Help:      "Tier eligibility evaluations by outcome (eligible, not_eligible, top_tier).",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveriesTotal counts outbound webhook delivery attempts by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partnerhub",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket dashboard clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "partnerhub",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBConnectionsOpen tracks open database connections.
	DBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "partnerhub",
			Name:      "db_connections_open",
			Help:      "Number of open database connections.",
		},
	)

	// Goroutines tracks the current goroutine count.
	Goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "partnerhub",
			Name:      "goroutines",
			Help:      "Current number of goroutines.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RevenueEventsTotal,
		CommissionTransitionsTotal,
		LimitDenialsTotal,
		EligibilityChecksTotal,
		WebhookDeliveriesTotal,
		ActiveWebSocketClients,
		DBConnectionsOpen,
		Goroutines,
	)
}

// CollectRuntime starts a background collector for runtime and DB gauges.
// Pass a nil db when running on in-memory stores.
func CollectRuntime(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				Goroutines.Set(float64(runtime.NumGoroutine()))
				if db != nil {
					DBConnectionsOpen.Set(float64(db.Stats().OpenConnections))
				}
			}
		}
	}()
}

// Middleware records request counts and latencies for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
