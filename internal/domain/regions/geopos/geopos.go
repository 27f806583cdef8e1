// Package geopos implements the volatile region of dropped vatoms inside a
// bounding box. The region is never persisted and asks the push channel to
// monitor its box so proximity "map" messages keep it current.
package geopos

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Kind is the registry kind of the geo region
const Kind = "geopos"

// Sender delivers commands over the push channel
type Sender interface {
	Send(v any) error
}

// Options configures the geo region
type Options struct {
	Region region.Options
	// UserID is the signed-in user; vatoms transferred away from them are
	// dropped from the region
	UserID string
	Sender Sender
}

// Command is a push-channel command frame
type Command struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Type    string `json:"type"`
	Cmd     string `json:"cmd"`
	Payload any    `json:"payload"`
}

// MonitorPayload is the body of the "monitor" command
type MonitorPayload struct {
	TopLeft     types.Coordinate `json:"top_left"`
	BottomRight types.Coordinate `json:"bottom_right"`
}

// MonitorCommand builds the command subscribing to proximity updates in box
func MonitorCommand(box types.BoundingBox) Command {
	return Command{
		ID:      "1",
		Version: "1",
		Type:    "command",
		Cmd:     "monitor",
		Payload: MonitorPayload{
			TopLeft:     types.Coordinate{Lat: box.TopRight.Lat, Lon: box.BottomLeft.Lon},
			BottomRight: types.Coordinate{Lat: box.BottomLeft.Lat, Lon: box.TopRight.Lon},
		},
	}
}

// Plugin loads dropped vatoms inside one box
type Plugin struct {
	api    blockv.API
	box    types.BoundingBox
	userID string
	sender Sender
}

// New creates a geo region. The store in opts is ignored.
func New(api blockv.API, box types.BoundingBox, opts Options) (*region.Region, error) {
	p, err := NewPlugin(api, box, opts)
	if err != nil {
		return nil, err
	}
	ro := opts.Region
	ro.Store = nil
	return region.New(p, blockv.RegionOptions(ro)), nil
}

// NewPlugin creates the plugin without its region
func NewPlugin(api blockv.API, box types.BoundingBox, opts Options) (*Plugin, error) {
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("geopos region: %w", err)
	}
	return &Plugin{api: api, box: box, userID: opts.UserID, sender: opts.Sender}, nil
}

// Box returns the monitored bounding box
func (p *Plugin) Box() types.BoundingBox { return p.box }

func (p *Plugin) Kind() string { return Kind }

func (p *Plugin) StateKey() string { return Kind + ":" + p.box.Key() }

// Matches requires an identical box
func (p *Plugin) Matches(kind string, descriptor any) bool {
	if kind != Kind {
		return false
	}
	switch box := descriptor.(type) {
	case types.BoundingBox:
		return box == p.box
	case *types.BoundingBox:
		return box != nil && *box == p.box
	}
	return false
}

// Load discovers the box and replaces the held set
func (p *Plugin) Load(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	var objs blockv.Objects
	err := r.WithMessagesPaused(func() error {
		var err error
		objs, err = p.api.GeoDiscover(ctx, p.box)
		if err != nil {
			return err
		}
		return r.Add(objs.All()...)
	})
	if err != nil {
		return region.LoadResult{}, err
	}

	p.monitor(r)
	return region.Full(objs.IDs()), nil
}

func (p *Plugin) monitor(r *region.Region) {
	if p.sender == nil {
		return
	}
	if err := p.sender.Send(MonitorCommand(p.box)); err != nil {
		r.Logger().Debug("Monitor command not sent", zap.Error(err))
	}
}

func (p *Plugin) Map(v region.View, o *region.DataObject) any {
	return vatom.Project(v, o)
}

func (p *Plugin) HandleMessage(ctx context.Context, r *region.Region, msg types.Message) error {
	switch msg.Type {
	case types.MsgStateUpdate:
		u, err := blockv.ParseStateUpdate(msg)
		if err != nil {
			return err
		}
		if v, ok := u.Patch.Lookup(vatom.PathDropped); ok {
			if dropped, isBool := v.AsBool(); isBool && !dropped {
				return r.Remove(u.ID)
			}
		}
		return r.Update(region.Change{ID: u.ID, Patch: u.Patch})

	case types.MsgMap:
		ev, err := blockv.ParseMapEvent(msg)
		if err != nil {
			return err
		}
		if ev.Op == blockv.MapRemove {
			return r.Remove(ev.VatomID)
		}
		if r.Has(ev.VatomID) {
			return nil
		}
		objs, err := blockv.FetchVatoms(ctx, p.api, []string{ev.VatomID}, blockv.DefaultBatchSize)
		if err != nil {
			return fmt.Errorf("fetch announced vatom %s: %w", ev.VatomID, err)
		}
		return r.Add(objs.All()...)

	case types.MsgInventory:
		ev, err := blockv.ParseInventoryEvent(msg)
		if err != nil {
			return err
		}
		if p.leavesUser(ev) && r.Has(ev.ID) {
			return r.Remove(ev.ID)
		}
	}
	return nil
}

func (p *Plugin) leavesUser(ev blockv.InventoryEvent) bool {
	if p.userID == "" {
		return ev.OldOwner != ev.NewOwner
	}
	return ev.OldOwner == p.userID && ev.NewOwner != p.userID
}
