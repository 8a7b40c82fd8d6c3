// Package metrics provides Prometheus instrumentation for the marketplace engine.
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
			Namespace: "reuni",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reuni",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OffersCreatedTotal counts offers created.
	OffersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "offers_created_total",
		Help:      "Total offers created.",
	})

	// OffersRespondedTotal counts seller responses by action.
	OffersRespondedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "offers_responded_total",
		Help:      "Total seller responses to offers by action.",
	}, []string{"action"})

	// OffersExpiredTotal counts offers expired by the sweep.
	OffersExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "offers_expired_total",
		Help:      "Total offers expired by the background sweep.",
	})

	// OffersWithdrawnTotal counts buyer withdrawals.
	OffersWithdrawnTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "offers_withdrawn_total",
		Help:      "Total offers withdrawn by buyers.",
	})

	// SettlementsTotal counts settlements by result.
	SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "settlements_total",
		Help:      "Total settlement attempts by result.",
	}, []string{"result"})

	// RefundsTotal counts refunds issued.
	RefundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "refunds_total",
		Help:      "Total transactions refunded.",
	})

	// PlatformFeePence accumulates collected platform fees.
	PlatformFeePence = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "platform_fee_pence_total",
		Help:      "Total platform fees collected, in pence.",
	})

	// PayoutRetriesTotal counts payout retry attempts by result.
	PayoutRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "payout_retries_total",
		Help:      "Total payout retry attempts by result.",
	}, []string{"result"})

	// DisputesTotal counts disputes by terminal status.
	DisputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "disputes_total",
		Help:      "Total dispute transitions by new status.",
	}, []string{"status"})

	// AuditWriteFailuresTotal counts failed audit writes. Every failure
	// here also failed a privileged operation.
	AuditWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reuni",
		Name:      "audit_write_failures_total",
		Help:      "Total failed audit log writes.",
	})

	// ActiveWebSocketClients tracks connected event stream clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reuni",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reuni", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reuni", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reuni", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OffersCreatedTotal,
		OffersRespondedTotal,
		OffersExpiredTotal,
		OffersWithdrawnTotal,
		SettlementsTotal,
		RefundsTotal,
		PlatformFeePence,
		PayoutRetriesTotal,
		DisputesTotal,
		AuditWriteFailuresTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits
// when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics.
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
