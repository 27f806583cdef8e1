// Package server is the inspector HTTP API: health, Prometheus metrics,
// region listing and lookup, forced synchronization and a WebSocket stream
// of region events.
package server
