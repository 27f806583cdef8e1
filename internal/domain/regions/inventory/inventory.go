package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Kind is the registry kind of the inventory region
const Kind = "inventory"

// Sync paths, as recorded in metrics
const (
	PathCold      = "cold"
	PathUnchanged = "unchanged"
	PathDiff      = "diff"
	PathFallback  = "fallback"
)

// Options configures the inventory region
type Options struct {
	Region region.Options
	Tuning config.InventoryConfig
	// Now is the clock used for the metadata watermark
	Now func() time.Time
}

// Plugin is the inventory region's behavior
type Plugin struct {
	api     blockv.API
	userID  string
	tuning  config.InventoryConfig
	store   cache.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu        sync.Mutex
	state     syncState
	stale     bool
	stateRead bool
}

// New creates the inventory region for the signed-in user. It fails with
// session.ErrNoSession when userID is empty.
func New(api blockv.API, userID string, opts Options) (*region.Region, error) {
	p, err := NewPlugin(api, userID, opts)
	if err != nil {
		return nil, err
	}
	return region.New(p, blockv.RegionOptions(opts.Region)), nil
}

// NewPlugin creates the plugin without its region
func NewPlugin(api blockv.API, userID string, opts Options) (*Plugin, error) {
	if userID == "" {
		return nil, fmt.Errorf("inventory region: %w", session.ErrNoSession)
	}
	if api == nil {
		return nil, fmt.Errorf("inventory region: api is required")
	}

	p := &Plugin{
		api:     api,
		userID:  userID,
		tuning:  withDefaults(opts.Tuning),
		store:   opts.Region.Store,
		logger:  logging.Component(opts.Region.Logger, Kind, zap.String("user_id", userID)),
		metrics: opts.Region.Metrics,
		now:     opts.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

func withDefaults(t config.InventoryConfig) config.InventoryConfig {
	d := config.Default().Inventory
	if t.PageSize <= 0 {
		t.PageSize = d.PageSize
	}
	if t.InitialPages <= 0 {
		t.InitialPages = d.InitialPages
	}
	if t.MaxConcurrentPages <= 0 {
		t.MaxConcurrentPages = d.MaxConcurrentPages
	}
	if t.PageCeiling <= 0 {
		t.PageCeiling = d.PageCeiling
	}
	if t.BatchSize <= 0 || t.BatchSize > blockv.DefaultBatchSize {
		t.BatchSize = blockv.DefaultBatchSize
	}
	if t.IndexPageSize <= 0 {
		t.IndexPageSize = d.IndexPageSize
	}
	return t
}

func (p *Plugin) Kind() string { return Kind }

func (p *Plugin) StateKey() string { return Kind + ":" + p.userID }

// UserID returns the owner of the inventory
func (p *Plugin) UserID() string { return p.userID }

// Matches accepts a nil descriptor or the owner's user id
func (p *Plugin) Matches(kind string, descriptor any) bool {
	if kind != Kind {
		return false
	}
	switch d := descriptor.(type) {
	case nil:
		return true
	case string:
		return d == "" || d == p.userID
	}
	return false
}

func (p *Plugin) Map(v region.View, o *region.DataObject) any {
	return vatom.Project(v, o)
}

// SessionChanged closes the region when another user signs in or the user
// signs out
func (p *Plugin) SessionChanged(r *region.Region, info session.Info) {
	if info.UserID != p.userID {
		p.logger.Info("Session changed, closing inventory")
		r.Close()
	}
}

// Hash returns the stored inventory hash, "" when unknown or invalidated
func (p *Plugin) Hash() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Hash
}

// Watermark returns the time the last metadata sync began
func (p *Plugin) Watermark() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.FaceActionFetch
}

// invalidateHash forgets the hash after a push changed the inventory
func (p *Plugin) invalidateHash() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Hash != "" {
		p.stale = true
	}
	p.state.Hash = ""
}

func (p *Plugin) HandleMessage(ctx context.Context, r *region.Region, msg types.Message) error {
	switch msg.Type {
	case types.MsgStateUpdate:
		p.invalidateHash()
		return blockv.HandleMessage(ctx, r, msg)

	case types.MsgInventory:
		ev, err := blockv.ParseInventoryEvent(msg)
		if err != nil {
			return err
		}
		p.invalidateHash()

		if ev.NewOwner != p.userID {
			if ev.OldOwner == p.userID {
				return r.Remove(ev.ID)
			}
			return nil
		}
		if r.Has(ev.ID) {
			return nil
		}
		objs, err := blockv.FetchVatoms(ctx, p.api, []string{ev.ID}, p.tuning.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch transferred vatom %s: %w", ev.ID, err)
		}
		return r.Add(objs.All()...)
	}
	return nil
}
