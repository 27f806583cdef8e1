package datapool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
)

var (
	// ErrUnknownKind is returned for kinds without a factory
	ErrUnknownKind = errors.New("unknown region kind")
	// ErrClosed is returned once the pool has been closed
	ErrClosed = errors.New("data pool closed")
	// ErrBadDescriptor is returned when a descriptor has the wrong shape
	ErrBadDescriptor = errors.New("invalid region descriptor")
)

// Sender delivers commands over the push channel
type Sender interface {
	Send(v any) error
}

// Deps are the collaborators shared by every region in a pool
type Deps struct {
	API      blockv.API
	Sessions *session.Manager
	// Store persists snapshots; nil keeps every region volatile
	Store  cache.Store
	Feed   region.Feed
	Sender Sender

	Inventory config.InventoryConfig
	// SaveDelay overrides region.DefaultSaveDelay when positive
	SaveDelay time.Duration
	// EmitNoopUpdates is passed through to every region
	EmitNoopUpdates bool

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Factory builds the region for descriptor. opts carries the pool's store,
// logger, metrics and close hook and must be passed on to the region.
type Factory func(deps Deps, descriptor any, opts region.Options) (*region.Region, error)

// Pool owns the live regions
type Pool struct {
	deps   Deps
	logger *zap.Logger

	mu        sync.Mutex
	factories map[string]Factory
	regions   []*region.Region
	closed    bool

	unsubscribe func()
}

// New creates a pool with the default factories registered
func New(deps Deps) *Pool {
	p := &Pool{
		deps:      deps,
		logger:    logging.Component(deps.Logger, "datapool"),
		factories: make(map[string]Factory),
	}
	registerDefaults(p)

	if deps.Sessions != nil {
		p.unsubscribe = deps.Sessions.Subscribe(p.sessionChanged)
	}
	return p
}

// Register installs or replaces the factory for kind
func (p *Pool) Register(kind string, f Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[kind] = f
}

// Kinds lists the registered kinds
func (p *Pool) Kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.factories))
	for k := range p.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Region returns the open region of kind matching descriptor, creating it
// when none does
func (p *Pool) Region(kind string, descriptor any) (*region.Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	for _, r := range p.regions {
		if !r.Closed() && r.Matches(kind, descriptor) {
			return r, nil
		}
	}

	factory, ok := p.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	r, err := factory(p.deps, descriptor, p.regionOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s region: %w", kind, err)
	}

	if err := r.LoadFromCache(); err != nil {
		p.logger.Warn("Ignoring unreadable snapshot",
			zap.String("state_key", r.StateKey()),
			zap.Error(err),
		)
	}
	if p.deps.Feed != nil {
		r.Attach(p.deps.Feed)
	}

	p.regions = append(p.regions, r)
	p.deps.Metrics.SetRegionsActive(len(p.regions))
	p.logger.Info("Region opened",
		zap.String("kind", kind),
		zap.String("state_key", r.StateKey()),
	)
	return r, nil
}

func (p *Pool) regionOptions() region.Options {
	return region.Options{
		Store:           p.deps.Store,
		SaveDelay:       p.deps.SaveDelay,
		Logger:          p.deps.Logger,
		Metrics:         p.deps.Metrics,
		EmitNoopUpdates: p.deps.EmitNoopUpdates,
		OnClose:         p.forget,
	}
}

func (p *Pool) forget(r *region.Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, held := range p.regions {
		if held == r {
			p.regions = append(p.regions[:i], p.regions[i+1:]...)
			break
		}
	}
	p.deps.Metrics.SetRegionsActive(len(p.regions))
}

// Regions returns the open regions, ordered by state key
func (p *Pool) Regions() []*region.Region {
	p.mu.Lock()
	out := append([]*region.Region(nil), p.regions...)
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StateKey() < out[j].StateKey() })
	return out
}

// Find returns the open region with the given state key
func (p *Pool) Find(stateKey string) (*region.Region, bool) {
	for _, r := range p.Regions() {
		if r.StateKey() == stateKey {
			return r, true
		}
	}
	return nil, false
}

func (p *Pool) sessionChanged(info session.Info) {
	for _, r := range p.Regions() {
		r.SessionChanged(info)
	}
}

// Close closes every region. The pool cannot be used afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	for _, r := range p.Regions() {
		r.Close()
	}
	p.logger.Info("Data pool closed")
}

type clearer interface {
	Clear(pattern string) (int, error)
}

// ClearCache deletes every snapshot, including those of regions that are not
// open. Open regions keep their in-memory objects.
func (p *Pool) ClearCache() error {
	var errs []error
	for _, r := range p.Regions() {
		if err := r.ClearCache(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := p.deps.Store.(clearer); ok {
		n, err := c.Clear("")
		if err != nil {
			errs = append(errs, err)
		}
		p.logger.Info("Cache cleared", zap.Int("snapshots", n))
	}
	return errors.Join(errs...)
}
