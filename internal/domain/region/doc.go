// Package region implements the engine shared by every synchronized
// collection of vatoms.
//
// A Region owns a keyed set of DataObjects and keeps it consistent with the
// platform from three unordered inputs: full loads (Synchronize), point
// fetches and push deltas. What differs between collections lives in a
// Plugin: how to load, which descriptors a region serves, how objects are
// projected for readers and, optionally, how push messages and session
// changes are handled.
//
// Concurrency:
//   - Mutations (Add, Update, Remove, DiffedRemove, preemptive changes) are
//     serialized by one writer lock; readers see consistent snapshots.
//   - Events are delivered in the order they were raised on a per-region
//     goroutine, so listeners may call back into the region.
//   - At most one load runs at a time; concurrent Synchronize calls share it.
//   - Push messages are processed one at a time, in arrival order, and are
//     held while messages are paused.
//   - Snapshot writes are debounced and never overlap.
//
// Example Usage:
//
//	r := region.New(plugin, region.Options{Store: store, Logger: logger})
//	_ = r.LoadFromCache()
//	r.Attach(pushChannel)
//	_ = r.Synchronize(ctx)
//	for _, v := range region.AllAs[*vatom.Vatom](r) { ... }
package region
