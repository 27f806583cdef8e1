package region

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

var (
	ErrClosed         = errors.New("region is closed")
	ErrObjectNotFound = errors.New("object not found")
)

// Feed is a source of push messages, typically the push channel
type Feed interface {
	Subscribe(fn func(types.Message)) func()
	OnConnected(fn func()) func()
}

// Region is an in-memory, optionally persisted cache of one collection of
// data objects, kept in step with the platform by full loads and push
// deltas.
type Region struct {
	plugin  Plugin
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics

	kind     string
	stateKey string

	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes writers; mu guards objects for readers
	opMu    sync.Mutex
	mu      sync.RWMutex
	objects map[string]*DataObject

	stateMu      sync.RWMutex
	synchronized bool
	lastErr      error
	lastSync     time.Time
	stableGen    uint64

	closed atomic.Bool
	sf     singleflight.Group

	events *dispatcher
	queue  *messageQueue
	saver  saver

	detachMu sync.Mutex
	detach   []func()
}

// New creates a region around plugin. The region is empty until
// LoadFromCache or Synchronize is called.
func New(plugin Plugin, opts Options) *Region {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}

	r := &Region{
		plugin:   plugin,
		opts:     opts,
		metrics:  opts.Metrics,
		kind:     plugin.Kind(),
		stateKey: plugin.StateKey(),
		objects:  make(map[string]*DataObject),
	}
	r.logger = logging.Component(opts.Logger, "region",
		zap.String("kind", r.kind),
		zap.String("state_key", r.stateKey),
	)
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.events = newDispatcher(func(ev Event) { r.metrics.RecordEvent(r.kind, ev.Kind.String()) })
	r.queue = newMessageQueue(r.processMessage)
	return r
}

// Kind returns the registry kind of the region
func (r *Region) Kind() string { return r.kind }

// StateKey returns the identity of the region's collection
func (r *Region) StateKey() string { return r.stateKey }

// Plugin returns the collection-specific behavior
func (r *Region) Plugin() Plugin { return r.plugin }

// Matches reports whether this region serves (kind, descriptor)
func (r *Region) Matches(kind string, descriptor any) bool {
	return kind == r.kind && r.plugin.Matches(kind, descriptor)
}

// Logger returns the region's logger
func (r *Region) Logger() *zap.Logger { return r.logger }

// Context is cancelled when the region closes
func (r *Region) Context() context.Context { return r.ctx }

// Synchronized reports whether the last load succeeded and nothing has
// destabilized the region since
func (r *Region) Synchronized() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.synchronized
}

// Err returns the error of the last failed load, cleared when a new sync
// starts
func (r *Region) Err() error {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.lastErr
}

// Closed reports whether Close has been called
func (r *Region) Closed() bool { return r.closed.Load() }

// Synchronize loads the collection unless the region is already
// synchronized. Concurrent callers share one load. Load failures do not
// surface here; they are recorded in Err and raised as EventError. The
// returned error is only ever the caller's context error or ErrClosed.
func (r *Region) Synchronize(ctx context.Context) error {
	if r.Closed() {
		return ErrClosed
	}
	if r.Synchronized() {
		return nil
	}

	ch := r.sf.DoChan("sync", func() (any, error) {
		r.runSync()
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.Closed() {
		return ErrClosed
	}
	return nil
}

// ForceSynchronize discards the synchronized state and loads again
func (r *Region) ForceSynchronize(ctx context.Context) error {
	r.Destabilize()
	return r.Synchronize(ctx)
}

// Destabilize marks the region as out of date, e.g. after the push channel
// reconnected and deltas may have been missed
func (r *Region) Destabilize() {
	r.stateMu.Lock()
	r.stableGen++
	was := r.synchronized
	r.synchronized = false
	r.stateMu.Unlock()

	if was {
		r.events.emit(Event{Kind: EventDestabilized})
	}
}

// maxSyncPasses bounds how often one Synchronize reloads when the region is
// destabilized while a load is running
const maxSyncPasses = 3

func (r *Region) runSync() {
	for pass := 1; pass <= maxSyncPasses; pass++ {
		stable, ok := r.syncPass()
		if !ok || stable {
			return
		}
		r.logger.Debug("Region destabilized during load, reloading", zap.Int("pass", pass))
	}
}

// syncPass runs one load. ok is false when the load failed or the region
// closed; stable reports whether no Destabilize happened while it ran.
func (r *Region) syncPass() (stable, ok bool) {
	if r.Closed() {
		return false, false
	}

	r.stateMu.Lock()
	r.lastErr = nil
	gen := r.stableGen
	r.stateMu.Unlock()

	r.events.emit(Event{Kind: EventSynchronizing})
	r.logger.Debug("Synchronizing region")

	start := time.Now()
	result, err := r.load()
	if err == nil && r.Closed() {
		err = ErrClosed
	}
	r.metrics.RecordSync(r.kind, err, time.Since(start))

	if err != nil {
		r.stateMu.Lock()
		r.lastErr = err
		r.stateMu.Unlock()
		if !errors.Is(err, ErrClosed) {
			r.logger.Warn("Region synchronization failed", zap.Error(err))
			r.events.emit(Event{Kind: EventError, Err: err})
		}
		return false, false
	}

	if result.Complete {
		_ = r.DiffedRemove(result.IDs)
	}

	r.stateMu.Lock()
	stable = gen == r.stableGen
	if stable {
		r.synchronized = true
		r.lastSync = time.Now()
	}
	r.stateMu.Unlock()

	r.logger.Debug("Region synchronized",
		zap.Int("objects", r.Len()),
		zap.Bool("stable", stable),
		zap.Duration("duration", time.Since(start)),
	)
	r.events.emit(Event{Kind: EventUpdated})
	if stable {
		r.events.emit(Event{Kind: EventStabilized})
	}
	return stable, true
}

func (r *Region) load() (result LoadResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("load panicked: %v", p)
		}
	}()
	return r.plugin.Load(r.ctx, r)
}

// Get returns the projection of one object, or nil when it is absent or
// hidden by the projection
func (r *Region) Get(id string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[id]
	if !ok {
		return nil
	}
	return r.project(o)
}

// GetMany returns the projections of the given ids, skipping absent and
// hidden objects
func (r *Region) GetMany(ids ...string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if o, ok := r.objects[id]; ok {
			if v := r.project(o); v != nil {
				out = append(out, v)
			}
		}
	}
	return out
}

// GetAll returns every visible projection ordered by object id
func (r *Region) GetAll() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.sortedIDs()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if v := r.project(r.objects[id]); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// GetStable synchronizes before reading
func (r *Region) GetStable(ctx context.Context, id string) (any, error) {
	if err := r.Synchronize(ctx); err != nil {
		return nil, err
	}
	return r.Get(id), nil
}

// GetAllStable synchronizes before reading
func (r *Region) GetAllStable(ctx context.Context) ([]any, error) {
	if err := r.Synchronize(ctx); err != nil {
		return nil, err
	}
	return r.GetAll(), nil
}

// Object returns a copy of the raw data object
func (r *Region) Object(id string) (*DataObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// IDs returns the held object ids, sorted
func (r *Region) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDs()
}

// Has reports whether an object is held
func (r *Region) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.objects[id]
	return ok
}

// Len returns the number of held objects
func (r *Region) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Filter returns copies of the objects accepted by fn
func (r *Region) Filter(fn func(o *DataObject) bool) []*DataObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*DataObject
	for _, id := range r.sortedIDs() {
		if o := r.objects[id]; fn(o) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// project runs with mu held for reading
func (r *Region) project(o *DataObject) any {
	return o.Cached(func() any { return r.plugin.Map(objectView(r.objects), o) })
}

func (r *Region) sortedIDs() []string {
	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe registers fn for every event
func (r *Region) Subscribe(fn func(Event)) func() {
	return r.events.subscribe(listener{all: true, fn: fn})
}

// On registers fn for one kind of event
func (r *Region) On(kind EventKind, fn func(Event)) func() {
	return r.events.subscribe(listener{kind: kind, fn: fn})
}

// Attach feeds push messages into the region's queue. A reconnect marks the
// region unstable and resynchronizes it in the background.
func (r *Region) Attach(feed Feed) {
	if r.Closed() {
		return
	}
	unsub := feed.Subscribe(r.Enqueue)
	unconn := feed.OnConnected(func() {
		if r.Closed() {
			return
		}
		r.Destabilize()
		go func() { _ = r.Synchronize(r.ctx) }()
	})

	r.detachMu.Lock()
	r.detach = append(r.detach, unsub, unconn)
	r.detachMu.Unlock()
}

// SessionChanged forwards a user change to the plugin
func (r *Region) SessionChanged(info session.Info) {
	if r.Closed() {
		return
	}
	if h, ok := r.plugin.(SessionHandler); ok {
		h.SessionChanged(r, info)
	}
}

// Close stops message processing, writes any pending snapshot and raises
// EventClosed. Further calls are no-ops.
func (r *Region) Close() {
	if r.closed.Swap(true) {
		return
	}

	r.detachMu.Lock()
	detach := r.detach
	r.detach = nil
	r.detachMu.Unlock()
	for _, fn := range detach {
		fn()
	}

	r.queue.close()
	r.cancel()

	if r.saver.stop() {
		if err := r.Flush(); err != nil {
			r.logger.Warn("Failed to write snapshot on close", zap.Error(err))
		}
	}

	if r.opts.OnClose != nil {
		r.opts.OnClose(r)
	}
	r.metrics.ForgetRegion(r.stateKey)

	r.events.emit(Event{Kind: EventClosed})
	r.events.close()
	r.logger.Debug("Region closed")
}

// Status summarizes a region for inspection
type Status struct {
	Kind         string    `json:"kind"`
	StateKey     string    `json:"state_key"`
	Objects      int       `json:"objects"`
	Synchronized bool      `json:"synchronized"`
	Closed       bool      `json:"closed"`
	Volatile     bool      `json:"volatile"`
	LastSync     time.Time `json:"last_sync,omitzero"`
	Error        string    `json:"error,omitempty"`
	Paused       bool      `json:"paused"`
	Pending      int       `json:"pending_messages"`
}

// Status returns a point-in-time summary
func (r *Region) Status() Status {
	r.stateMu.RLock()
	st := Status{
		Kind:         r.kind,
		StateKey:     r.stateKey,
		Synchronized: r.synchronized,
		LastSync:     r.lastSync,
	}
	if r.lastErr != nil {
		st.Error = r.lastErr.Error()
	}
	r.stateMu.RUnlock()

	st.Objects = r.Len()
	st.Closed = r.Closed()
	st.Volatile = r.opts.Store == nil
	st.Paused, st.Pending = r.queue.state()
	return st
}
