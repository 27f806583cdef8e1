package region

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// DefaultSaveDelay is how long a region waits after the last mutation
// before writing its snapshot
const DefaultSaveDelay = 5 * time.Second

// LoadResult is what a plugin's Load reports back to the region
type LoadResult struct {
	// IDs is the authoritative membership when Complete is set
	IDs []string
	// Complete prunes every held object that is not in IDs
	Complete bool
}

// Partial is the LoadResult of an incremental load that must not prune
func Partial() LoadResult { return LoadResult{} }

// Full is the LoadResult of a load that fetched the whole collection
func Full(ids []string) LoadResult { return LoadResult{IDs: ids, Complete: true} }

// Plugin supplies the collection-specific behavior of a region
type Plugin interface {
	// Kind is the registry kind, e.g. "inventory"
	Kind() string
	// StateKey identifies this region's collection and parameters
	StateKey() string
	// Load fetches from the platform and applies the result to r
	Load(ctx context.Context, r *Region) (LoadResult, error)
	// Matches reports whether this region serves (kind, descriptor)
	Matches(kind string, descriptor any) bool
	// Map projects an object for readers. Returning nil hides it.
	Map(v View, o *DataObject) any
}

// MessageHandler is implemented by plugins that consume push messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, r *Region, msg types.Message) error
}

// SessionHandler is implemented by plugins that react to user changes
type SessionHandler interface {
	SessionChanged(r *Region, info session.Info)
}

// View is read access to a region's objects while a projection is computed
type View interface {
	Lookup(id string) (*DataObject, bool)
	Each(fn func(o *DataObject) bool)
}

// Options configures a region
type Options struct {
	// Store persists snapshots; nil makes the region volatile
	Store     cache.Store
	SaveDelay time.Duration
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics

	// EmitNoopUpdates raises update events for changes that leave a
	// payload untouched
	EmitNoopUpdates bool

	// ParentOf returns the parent id of an object, or ""
	ParentOf func(o *DataObject) string
	// Related returns ids whose projections depend on o
	Related func(v View, o *DataObject) []string
	// OnClose runs once when the region closes
	OnClose func(r *Region)
}

type objectView map[string]*DataObject

func (v objectView) Lookup(id string) (*DataObject, bool) {
	o, ok := v[id]
	return o, ok
}

func (v objectView) Each(fn func(o *DataObject) bool) {
	for _, o := range v {
		if !fn(o) {
			return
		}
	}
}
