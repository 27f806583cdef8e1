// Package vatoms implements the region holding an explicit set of vatoms
// by id.
package vatoms

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Kind is the registry kind of the by-id region
const Kind = "ids"

// Plugin loads a fixed id set
type Plugin struct {
	api       blockv.API
	ids       []string
	batchSize int
}

// New creates a region for ids. Duplicates are ignored and order does not
// matter for identity.
func New(api blockv.API, ids []string, opts region.Options) (*region.Region, error) {
	p, err := NewPlugin(api, ids)
	if err != nil {
		return nil, err
	}
	return region.New(p, blockv.RegionOptions(opts)), nil
}

// NewPlugin creates the plugin without its region
func NewPlugin(api blockv.API, ids []string) (*Plugin, error) {
	set := normalize(ids)
	if len(set) == 0 {
		return nil, fmt.Errorf("vatoms region: at least one id is required")
	}
	return &Plugin{api: api, ids: set, batchSize: blockv.DefaultBatchSize}, nil
}

func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IDs returns the sorted id set
func (p *Plugin) IDs() []string { return slices.Clone(p.ids) }

func (p *Plugin) Kind() string { return Kind }

func (p *Plugin) StateKey() string { return Kind + ":" + strings.Join(p.ids, ",") }

// Matches requires the same id set
func (p *Plugin) Matches(kind string, descriptor any) bool {
	if kind != Kind {
		return false
	}
	ids, ok := descriptor.([]string)
	return ok && slices.Equal(normalize(ids), p.ids)
}

// Load fetches the ids and their faces and actions. Objects the server no
// longer returns are pruned.
func (p *Plugin) Load(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	var objs blockv.Objects
	err := r.WithMessagesPaused(func() error {
		var err error
		objs, err = blockv.FetchVatoms(ctx, p.api, p.ids, p.batchSize)
		if err != nil {
			return err
		}
		return r.Add(objs.All()...)
	})
	if err != nil {
		return region.LoadResult{}, err
	}
	return region.Full(objs.IDs()), nil
}

func (p *Plugin) Map(v region.View, o *region.DataObject) any {
	return vatom.Project(v, o)
}

func (p *Plugin) HandleMessage(ctx context.Context, r *region.Region, msg types.Message) error {
	return blockv.HandleMessage(ctx, r, msg)
}
