// Package cache persists region snapshots between runs.
//
// A snapshot is the list of Records a region holds, stored under the
// region's state key. FileStore writes one file per key (plain JSON or
// zstd-compressed JSON); MemoryStore keeps snapshots in process for tests
// and for hosts that want a warm cache without touching disk.
//
// Each record is encoded as a compact [id, type, data] triple.
package cache
