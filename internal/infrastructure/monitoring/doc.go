// Package monitoring provides Prometheus metrics for the sync engine.
//
// Metrics are registered on an injected prometheus.Registerer so tests can
// use an isolated registry. Every recording method is safe on a nil
// *Metrics.
//
// Metric Families:
//   - vatomsync_region_*: synchronizations, durations, object counts, events
//   - vatomsync_inventory_sync_path_total: hash-unchanged / diff / full fetch
//   - vatomsync_push_*: processed messages and connection attempts
//   - vatomsync_cache_*: snapshot writes and sizes
//   - vatomsync_api_*: platform API requests
//   - vatomsync_inspector_*: inspector HTTP requests
//
// Example Usage:
//
//	reg := prometheus.NewRegistry()
//	metrics := monitoring.NewMetrics(reg)
//	metrics.RecordSync("inventory", nil, time.Second)
package monitoring
