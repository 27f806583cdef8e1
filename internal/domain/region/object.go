package region

import (
	"sync"

	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// Object type tags
const (
	TypeVatom  = "vatom"
	TypeFace   = "face"
	TypeAction = "action"
)

// DataObject is a raw cache entry: identity, type tag and the payload as
// received from the platform, plus a memoized projection.
type DataObject struct {
	ID   string
	Type string

	mu       sync.Mutex
	data     payload.Value
	cached   any
	hasCache bool
	version  uint64
}

// NewObject creates a data object
func NewObject(id, typ string, data payload.Value) *DataObject {
	return &DataObject{ID: id, Type: typ, data: data}
}

// Data returns the current payload
func (o *DataObject) Data() payload.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.data
}

// SetData replaces the payload and drops the cached projection
func (o *DataObject) SetData(data payload.Value) {
	o.mu.Lock()
	o.data = data
	o.version++
	o.cached, o.hasCache = nil, false
	o.mu.Unlock()
}

// Patch deep-merges changes into the payload and drops the cached projection
func (o *DataObject) Patch(changes payload.Value) {
	o.mu.Lock()
	o.data = o.data.Merge(changes)
	o.version++
	o.cached, o.hasCache = nil, false
	o.mu.Unlock()
}

// Invalidate drops the cached projection
func (o *DataObject) Invalidate() {
	o.mu.Lock()
	o.version++
	o.cached, o.hasCache = nil, false
	o.mu.Unlock()
}

// Cached returns the memoized projection, computing it with fn on first use.
// A nil projection is memoized too.
func (o *DataObject) Cached(fn func() any) any {
	o.mu.Lock()
	if o.hasCache {
		v := o.cached
		o.mu.Unlock()
		return v
	}
	version := o.version
	o.mu.Unlock()

	// fn may read this object's payload, so it runs unlocked
	v := fn()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.version != version {
		return v
	}
	if !o.hasCache {
		o.cached, o.hasCache = v, true
	}
	return o.cached
}

// Clone returns a copy without the cached projection. Payloads are
// immutable so the copy shares them.
func (o *DataObject) Clone() *DataObject {
	return NewObject(o.ID, o.Type, o.Data())
}
