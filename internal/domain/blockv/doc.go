// Package blockv connects regions to the BLOCKv platform.
//
// It holds the API surface the regions load from, the translation of
// platform responses into region.DataObjects (validated at the boundary,
// failing with ParseError rather than dropping fields), and the push
// handling every vatom region shares: "state_update" messages are applied
// as deep-merge updates.
package blockv
