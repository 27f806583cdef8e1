// Package types provides data structures shared between the transport layer
// and the sync engine.
//
// Core Types:
//   - Message: a raw push channel frame ({"msg_type": ..., "payload": ...})
//   - Coordinate, BoundingBox: geographic search areas
//
// Message types understood by the regions:
//   - state_update: partial change record for one object
//   - inventory: ownership transfer of one object
//   - map: server-side proximity add/remove announcements
package types
