// Package datapool is the registry of live regions. A pool hands out one
// region per (kind, descriptor), creating it through a registered factory
// on first use, restoring its snapshot and attaching it to the push feed.
// Regions leave the pool when they close.
package datapool
