package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Certificate lifecycle metrics
	CertificatesIssued        prometheus.Counter
	CertificateRevocations    *prometheus.CounterVec
	CascadeRevocations        *prometheus.CounterVec
	CertificatesExpired       prometheus.Gauge

	// Federation metrics
	FederationRequestsTotal *prometheus.CounterVec
	FederationRetriesTotal  *prometheus.CounterVec
	FederationDuration      *prometheus.HistogramVec

	// Organization metrics
	OrganizationsTotal     prometheus.Gauge
	OrganizationsPending   prometheus.Gauge

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mir_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mir_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mir_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		CertificatesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mir_certificates_issued_total",
				Help: "Total number of certificates issued",
			},
		),
		CertificateRevocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mir_certificate_revocations_total",
				Help: "Total number of certificate revocations",
			},
			[]string{"reason"},
		),
		CascadeRevocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mir_cascade_revocations_total",
				Help: "Total number of cascading revocations triggered by owner deletion",
			},
			[]string{"owner_kind"},
		),
		CertificatesExpired: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mir_certificates_expired",
				Help: "Number of certificates past their validity window without a revocation",
			},
		),

		FederationRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mir_federation_requests_total",
				Help: "Total number of requests to the federation service",
			},
			[]string{"operation", "status"},
		),
		FederationRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mir_federation_retries_total",
				Help: "Total number of retried federation requests",
			},
			[]string{"operation"},
		),
		FederationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mir_federation_request_duration_seconds",
				Help:    "Federation request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		OrganizationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mir_organizations_total",
				Help: "Total number of approved organizations",
			},
		),
		OrganizationsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mir_organizations_pending",
				Help: "Number of organizations awaiting approval",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mir_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mir_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CertificatesIssued,
		m.CertificateRevocations,
		m.CascadeRevocations,
		m.CertificatesExpired,
		m.FederationRequestsTotal,
		m.FederationRetriesTotal,
		m.FederationDuration,
		m.OrganizationsTotal,
		m.OrganizationsPending,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// CollectDBStats copies connection pool statistics into the gauges
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
