package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	// Region metrics
	SyncTotal      *prometheus.CounterVec
	SyncDuration   *prometheus.HistogramVec
	RegionObjects  *prometheus.GaugeVec
	RegionsActive  prometheus.Gauge
	RegionEvents   *prometheus.CounterVec
	InventoryPaths *prometheus.CounterVec

	// Push metrics
	PushMessages    *prometheus.CounterVec
	PushConnections *prometheus.CounterVec

	// Cache metrics
	CacheWrites *prometheus.CounterVec
	CacheBytes  prometheus.Histogram

	// API metrics
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec

	// Inspector HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SyncTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_region_sync_total",
				Help: "Total number of region synchronizations",
			},
			[]string{"kind", "result"},
		),
		SyncDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vatomsync_region_sync_duration_seconds",
				Help:    "Region synchronization duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		RegionObjects: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vatomsync_region_objects",
				Help: "Number of objects held per region",
			},
			[]string{"state_key"},
		),
		RegionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "vatomsync_regions_active",
				Help: "Number of regions registered in the pool",
			},
		),
		RegionEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_region_events_total",
				Help: "Total number of region events emitted",
			},
			[]string{"kind", "event"},
		),
		InventoryPaths: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_inventory_sync_path_total",
				Help: "Inventory synchronizations by strategy taken",
			},
			[]string{"path"},
		),
		PushMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_push_messages_total",
				Help: "Total number of push messages processed",
			},
			[]string{"msg_type", "result"},
		),
		PushConnections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_push_connections_total",
				Help: "Push channel connection attempts",
			},
			[]string{"result"},
		),
		CacheWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_cache_writes_total",
				Help: "Region snapshot writes",
			},
			[]string{"result"},
		),
		CacheBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vatomsync_cache_snapshot_bytes",
				Help:    "Size of written region snapshots in bytes",
				Buckets: []float64{1000, 10000, 100000, 1000000, 10000000},
			},
		),
		APIRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_api_requests_total",
				Help: "Platform API requests",
			},
			[]string{"endpoint", "status"},
		),
		APIDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vatomsync_api_request_duration_seconds",
				Help:    "Platform API request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vatomsync_inspector_requests_total",
				Help: "Inspector HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vatomsync_inspector_request_duration_seconds",
				Help:    "Inspector HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordSync records one synchronization attempt
func (m *Metrics) RecordSync(kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	m.SyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetRegionObjects records the object count of a region
func (m *Metrics) SetRegionObjects(stateKey string, count int) {
	if m == nil {
		return
	}
	m.RegionObjects.WithLabelValues(stateKey).Set(float64(count))
}

// ForgetRegion drops the per-region series of a closed region
func (m *Metrics) ForgetRegion(stateKey string) {
	if m == nil {
		return
	}
	m.RegionObjects.DeleteLabelValues(stateKey)
}

// SetRegionsActive records the pool size
func (m *Metrics) SetRegionsActive(count int) {
	if m == nil {
		return
	}
	m.RegionsActive.Set(float64(count))
}

// RecordEvent counts an emitted region event
func (m *Metrics) RecordEvent(kind, event string) {
	if m == nil {
		return
	}
	m.RegionEvents.WithLabelValues(kind, event).Inc()
}

// RecordInventoryPath counts the strategy an inventory sync took
func (m *Metrics) RecordInventoryPath(path string) {
	if m == nil {
		return
	}
	m.InventoryPaths.WithLabelValues(path).Inc()
}

// RecordPushMessage counts a processed push message
func (m *Metrics) RecordPushMessage(msgType string, err error) {
	if m == nil {
		return
	}
	m.PushMessages.WithLabelValues(msgType, resultLabel(err)).Inc()
}

// RecordPushConnection counts a push channel dial attempt
func (m *Metrics) RecordPushConnection(err error) {
	if m == nil {
		return
	}
	m.PushConnections.WithLabelValues(resultLabel(err)).Inc()
}

// RecordCacheWrite counts a snapshot write
func (m *Metrics) RecordCacheWrite(size int, err error) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		m.CacheBytes.Observe(float64(size))
	}
}

// RecordAPIRequest records one platform API call
func (m *Metrics) RecordAPIRequest(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, status).Inc()
	m.APIDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordHTTPRequest records one inspector request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
