package blockv

import (
	"context"
	"time"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// ParentAny asks the inventory endpoint for vatoms at every level
const ParentAny = "*"

// API is the subset of the platform the regions depend on
type API interface {
	// InventoryHash returns the fingerprint of the user's whole inventory
	InventoryHash(ctx context.Context) (string, error)
	// InventoryIndex returns one page of the id/sync-number index
	InventoryIndex(ctx context.Context, cursor string, limit int) (IndexPage, error)
	// GetVatoms fetches vatoms by id with their faces and actions
	GetVatoms(ctx context.Context, ids []string) (Objects, error)
	// InventoryPage fetches one page of the owner's vatoms
	InventoryPage(ctx context.Context, parentID string, page, limit int) (Objects, error)
	// GeoDiscover fetches the dropped vatoms inside a bounding box
	GeoDiscover(ctx context.Context, box types.BoundingBox) (Objects, error)
	// FaceChanges returns face changes for templates since a time
	FaceChanges(ctx context.Context, templates []string, since time.Time) ([]Change, error)
	// ActionChanges returns action changes for templates since a time
	ActionChanges(ctx context.Context, templates []string, since time.Time) ([]Change, error)
}

// IndexEntry is one vatom's id and sync number
type IndexEntry struct {
	ID   string `json:"id"`
	Sync uint64 `json:"sync"`
}

// IndexPage is one page of the inventory index. An empty Next ends the
// listing.
type IndexPage struct {
	Entries []IndexEntry
	Next    string
}

// Objects is a platform response split by object type
type Objects struct {
	Vatoms  []*region.DataObject
	Faces   []*region.DataObject
	Actions []*region.DataObject
}

// All returns vatoms, faces and actions in one slice
func (o Objects) All() []*region.DataObject {
	out := make([]*region.DataObject, 0, len(o.Vatoms)+len(o.Faces)+len(o.Actions))
	out = append(out, o.Vatoms...)
	out = append(out, o.Faces...)
	return append(out, o.Actions...)
}

// VatomIDs returns the ids of the vatoms
func (o Objects) VatomIDs() []string {
	ids := make([]string, len(o.Vatoms))
	for i, v := range o.Vatoms {
		ids[i] = v.ID
	}
	return ids
}

// IDs returns the ids of every object
func (o Objects) IDs() []string {
	all := o.All()
	ids := make([]string, len(all))
	for i, v := range all {
		ids[i] = v.ID
	}
	return ids
}

// Merge appends other's objects
func (o *Objects) Merge(other Objects) {
	o.Vatoms = append(o.Vatoms, other.Vatoms...)
	o.Faces = append(o.Faces, other.Faces...)
	o.Actions = append(o.Actions, other.Actions...)
}

// Len returns the number of objects
func (o Objects) Len() int {
	return len(o.Vatoms) + len(o.Faces) + len(o.Actions)
}

// Change operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change is one entry of a face or action changeset
type Change struct {
	Op       string
	ID       string
	Template string
	// Object is nil for deletes
	Object *region.DataObject
}
