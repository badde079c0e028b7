// Package metrics exposes Prometheus counters for registration code
// allocation, collection writes, dashboard builds and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	CodesAllocated        prometheus.Counter
	AllocationCollisions  prometheus.Counter
	AllocationExhaustions prometheus.Counter
	StorageConflicts      *prometheus.CounterVec
	CollectionsRecorded   *prometheus.CounterVec
	SyncPublishFailures   prometheus.Counter
	DashboardDuration     prometheus.Histogram
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	RateLimited           prometheus.Counter
	SuspiciousRequests    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CodesAllocated: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_registration_codes_allocated_total",
			Help: "Registration codes handed out by the allocator",
		}),
		AllocationCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_registration_code_collisions_total",
			Help: "Random candidates rejected because the code was already held",
		}),
		AllocationExhaustions: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_registration_code_exhaustions_total",
			Help: "Allocations that gave up after the attempt bound",
		}),
		StorageConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mahal_storage_conflicts_total",
			Help: "Writes rejected by the shared registration code constraint",
		}, []string{"kind"}),
		CollectionsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mahal_collections_recorded_total",
			Help: "Fund collections recorded, by bucket",
		}, []string{"bucket"}),
		SyncPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_sync_publish_failures_total",
			Help: "Collection sync messages that could not be published",
		}),
		DashboardDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mahal_dashboard_build_duration_seconds",
			Help:    "Time spent computing dashboard stats on a cache miss",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mahal_http_requests_total",
			Help: "HTTP requests served, by method and status code",
		}, []string{"method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mahal_http_request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_http_rate_limited_total",
			Help: "Write requests rejected by the per-IP rate limiter",
		}),
		SuspiciousRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "mahal_http_suspicious_requests_total",
			Help: "Requests matching known probe patterns",
		}),
		gatherer: g,
	}
}

func (m *Metrics) IncCodesAllocated() {
	if m != nil {
		m.CodesAllocated.Inc()
	}
}

func (m *Metrics) IncAllocationCollision() {
	if m != nil {
		m.AllocationCollisions.Inc()
	}
}

func (m *Metrics) IncAllocationExhausted() {
	if m != nil {
		m.AllocationExhaustions.Inc()
	}
}

// IncStorageConflict records a conflict for kind ("member" or "user").
func (m *Metrics) IncStorageConflict(kind string) {
	if m != nil {
		m.StorageConflicts.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncCollectionRecorded(bucket string) {
	if m != nil {
		m.CollectionsRecorded.WithLabelValues(bucket).Inc()
	}
}

func (m *Metrics) IncSyncPublishFailure() {
	if m != nil {
		m.SyncPublishFailures.Inc()
	}
}

// ObserveDashboard records the duration of a dashboard build.
// Call with time.Now() at the start of the build.
func (m *Metrics) ObserveDashboard(start time.Time) {
	if m != nil {
		m.DashboardDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) IncSuspiciousRequest() {
	if m != nil {
		m.SuspiciousRequests.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
