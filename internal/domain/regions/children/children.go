// Package children implements the region holding the direct children of
// one parent vatom (or the root of the inventory).
package children

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Kind is the registry kind of the children region
const Kind = "children"

// DefaultPageSize is the page size used for InventoryPage
const DefaultPageSize = 100

// maxPages bounds a misbehaving server that never returns an empty page
const maxPages = 1000

// Plugin loads the children of one parent
type Plugin struct {
	api      blockv.API
	parentID string
	pageSize int
}

// New creates a children region. An empty parentID selects the root.
func New(api blockv.API, parentID string, opts region.Options) *region.Region {
	return region.New(NewPlugin(api, parentID), blockv.RegionOptions(opts))
}

// NewPlugin creates the plugin without its region
func NewPlugin(api blockv.API, parentID string) *Plugin {
	if parentID == "" {
		parentID = vatom.RootParentID
	}
	return &Plugin{api: api, parentID: parentID, pageSize: DefaultPageSize}
}

// ParentID returns the parent whose children are held
func (p *Plugin) ParentID() string { return p.parentID }

func (p *Plugin) Kind() string { return Kind }

func (p *Plugin) StateKey() string { return Kind + ":" + p.parentID }

// Matches compares the parent id, treating "" as the root
func (p *Plugin) Matches(kind string, descriptor any) bool {
	if kind != Kind {
		return false
	}
	parent, ok := descriptor.(string)
	if !ok {
		return false
	}
	if parent == "" {
		parent = vatom.RootParentID
	}
	return parent == p.parentID
}

// Load pages through the parent's children until an empty page
func (p *Plugin) Load(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	var keep []string
	err := r.WithMessagesPaused(func() error {
		for page := 1; page <= maxPages; page++ {
			objs, err := p.api.InventoryPage(ctx, p.parentID, page, p.pageSize)
			if err != nil {
				return fmt.Errorf("children of %s, page %d: %w", p.parentID, page, err)
			}
			if len(objs.Vatoms) == 0 {
				return nil
			}
			if err := r.Add(objs.All()...); err != nil {
				return err
			}
			keep = append(keep, objs.IDs()...)
		}
		r.Logger().Warn("Children page limit reached")
		return nil
	})
	if err != nil {
		return region.LoadResult{}, err
	}
	return region.Full(keep), nil
}

func (p *Plugin) Map(v region.View, o *region.DataObject) any {
	return vatom.Project(v, o)
}

// HandleMessage follows vatoms moving in and out of the parent
func (p *Plugin) HandleMessage(ctx context.Context, r *region.Region, msg types.Message) error {
	switch msg.Type {
	case types.MsgStateUpdate:
		u, err := blockv.ParseStateUpdate(msg)
		if err != nil {
			return err
		}
		parent, moved := u.ParentChange()
		held := r.Has(u.ID)
		switch {
		case moved && parent != p.parentID && held:
			return r.Remove(u.ID)
		case moved && parent == p.parentID && !held:
			objs, err := blockv.FetchVatoms(ctx, p.api, []string{u.ID}, blockv.DefaultBatchSize)
			if err != nil {
				return fmt.Errorf("fetch moved vatom %s: %w", u.ID, err)
			}
			return r.Add(objs.All()...)
		}
		return r.Update(region.Change{ID: u.ID, Patch: u.Patch})

	case types.MsgInventory:
		ev, err := blockv.ParseInventoryEvent(msg)
		if err != nil {
			return err
		}
		if ev.OldOwner != ev.NewOwner && r.Has(ev.ID) {
			return r.Remove(ev.ID)
		}
	}
	return nil
}
