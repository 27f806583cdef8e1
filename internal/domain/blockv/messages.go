package blockv

import (
	"context"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// StateUpdate is a decoded "state_update" message
type StateUpdate struct {
	ID    string
	Patch payload.Value
}

// ParseStateUpdate decodes a "state_update" message
func ParseStateUpdate(msg types.Message) (StateUpdate, error) {
	id := msg.Payload.String("id")
	if id == "" {
		return StateUpdate{}, &ParseError{Kind: types.MsgStateUpdate, Field: "id", Msg: "is missing"}
	}
	patch, ok := msg.Payload.Field("new_object")
	if !ok || !patch.IsObject() {
		return StateUpdate{}, &ParseError{Kind: types.MsgStateUpdate, Field: "new_object", Msg: "is missing"}
	}
	return StateUpdate{ID: id, Patch: patch}, nil
}

// ParentChange reports whether the update moves the vatom, and where to
func (u StateUpdate) ParentChange() (string, bool) {
	v, ok := u.Patch.Lookup(vatom.PathParentID)
	if !ok {
		return "", false
	}
	parent, ok := v.AsString()
	return parent, ok
}

// InventoryEvent is a decoded "inventory" (ownership transfer) message
type InventoryEvent struct {
	ID       string
	OldOwner string
	NewOwner string
}

// ParseInventoryEvent decodes an "inventory" message
func ParseInventoryEvent(msg types.Message) (InventoryEvent, error) {
	ev := InventoryEvent{
		ID:       msg.Payload.String("id"),
		OldOwner: msg.Payload.String("old_owner"),
		NewOwner: msg.Payload.String("new_owner"),
	}
	if ev.ID == "" {
		return InventoryEvent{}, &ParseError{Kind: types.MsgInventory, Field: "id", Msg: "is missing"}
	}
	return ev, nil
}

// Map message operations
const (
	MapAdd    = "add"
	MapRemove = "remove"
)

// MapEvent is a decoded "map" (proximity) message
type MapEvent struct {
	Op      string
	VatomID string
}

// ParseMapEvent decodes a "map" message
func ParseMapEvent(msg types.Message) (MapEvent, error) {
	ev := MapEvent{Op: msg.Payload.String("op"), VatomID: msg.Payload.String("vatom_id")}
	if ev.VatomID == "" {
		return MapEvent{}, &ParseError{Kind: types.MsgMap, Field: "vatom_id", Msg: "is missing"}
	}
	if ev.Op != MapAdd && ev.Op != MapRemove {
		return MapEvent{}, &ParseError{Kind: types.MsgMap, Field: "op", Msg: "is unknown: " + ev.Op}
	}
	return ev, nil
}

// HandleMessage is the push handling shared by vatom regions: a
// "state_update" is applied as a deep-merge update. Other message types are
// ignored.
func HandleMessage(_ context.Context, r *region.Region, msg types.Message) error {
	if msg.Type != types.MsgStateUpdate {
		return nil
	}
	u, err := ParseStateUpdate(msg)
	if err != nil {
		return err
	}
	return r.Update(region.Change{ID: u.ID, Patch: u.Patch})
}

// RegionOptions adds the vatom relationship hooks to base: parent
// notifications and face/action invalidation of same-template vatoms
func RegionOptions(base region.Options) region.Options {
	base.ParentOf = vatom.ParentOf
	base.Related = vatom.Related
	return base
}
