package region

import (
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// Change is a partial update for one object
type Change struct {
	ID    string
	Patch payload.Value
}

// batch collects the events of one mutation so they are raised together
type batch struct {
	r       *Region
	events  []Event
	touched []string
	seen    map[string]bool
	changed bool
}

func (r *Region) newBatch() *batch {
	return &batch{r: r, seen: make(map[string]bool)}
}

func (b *batch) emit(kind EventKind, o *DataObject) {
	b.events = append(b.events, Event{Kind: kind, ID: o.ID, Object: o.Clone()})
}

// touch queues an EventObjectUpdated for id
func (b *batch) touch(id string) {
	if id == "" || b.seen[id] {
		return
	}
	b.seen[id] = true
	b.touched = append(b.touched, id)
}

func (b *batch) parentMoved(oldParent, newParent string) {
	if oldParent == newParent {
		return
	}
	b.touch(oldParent)
	b.touch(newParent)
}

// related invalidates and touches the objects whose projection depends on o
func (b *batch) related(o *DataObject) {
	if b.r.opts.Related == nil {
		return
	}
	for _, id := range b.r.opts.Related(objectView(b.r.objects), o) {
		if dep, ok := b.r.objects[id]; ok {
			dep.Invalidate()
			b.touch(id)
		}
	}
}

func (r *Region) parentOf(o *DataObject) string {
	if r.opts.ParentOf == nil || o == nil {
		return ""
	}
	return r.opts.ParentOf(o)
}

// commit raises a batch's events. Callers hold opMu and mu.
func (r *Region) commit(b *batch, save bool) {
	if !b.changed && len(b.touched) == 0 {
		return
	}

	events := b.events
	for _, id := range b.touched {
		events = append(events, Event{Kind: EventObjectUpdated, ID: id})
	}
	if b.changed {
		events = append(events, Event{Kind: EventUpdated})
	}
	r.events.emit(events...)

	if b.changed && save {
		r.Save()
	}
	r.metrics.SetRegionObjects(r.stateKey, len(r.objects))
}

// lock acquires the writer locks, or reports ErrClosed
func (r *Region) lock() error {
	r.opMu.Lock()
	if r.Closed() {
		r.opMu.Unlock()
		return ErrClosed
	}
	r.mu.Lock()
	return nil
}

func (r *Region) unlock() {
	r.mu.Unlock()
	r.opMu.Unlock()
}

// Add inserts objects or replaces the payload of held ones. Objects without
// an id or with an empty payload are skipped. One EventUpdated is raised
// for the whole batch when anything changed.
func (r *Region) Add(objects ...*DataObject) error {
	return r.add(objects, true)
}

func (r *Region) add(objects []*DataObject, save bool) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.unlock()

	b := r.newBatch()
	for _, o := range objects {
		if o == nil || o.ID == "" {
			continue
		}
		data := o.Data()
		if data.IsEmpty() {
			continue
		}

		existing, ok := r.objects[o.ID]
		if !ok {
			obj := NewObject(o.ID, o.Type, data)
			b.emit(EventWillAdd, obj)
			r.objects[obj.ID] = obj
			b.emit(EventDidAdd, obj)
			b.parentMoved("", r.parentOf(obj))
			b.related(obj)
			b.changed = true
			continue
		}

		if !r.opts.EmitNoopUpdates && existing.Type == o.Type && existing.Data().Equal(data) {
			continue
		}
		oldParent := r.parentOf(existing)
		b.emit(EventWillUpdate, existing)
		existing.Type = o.Type
		existing.SetData(data)
		b.emit(EventDidUpdate, existing)
		b.parentMoved(oldParent, r.parentOf(existing))
		b.related(existing)
		b.changed = true
	}

	r.commit(b, save)
	return nil
}

// Update deep-merges patches into held objects. Changes for ids that are
// not held are dropped.
func (r *Region) Update(changes ...Change) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.unlock()

	b := r.newBatch()
	for _, c := range changes {
		o, ok := r.objects[c.ID]
		if !ok {
			continue
		}
		before := o.Data()
		after := before.Merge(c.Patch)
		if !r.opts.EmitNoopUpdates && after.Equal(before) {
			continue
		}

		oldParent := r.parentOf(o)
		b.emit(EventWillUpdate, o)
		o.SetData(after)
		b.emit(EventDidUpdate, o)
		b.touch(o.ID)
		b.parentMoved(oldParent, r.parentOf(o))
		b.related(o)
		b.changed = true
	}

	r.commit(b, true)
	return nil
}

// Remove deletes the given ids
func (r *Region) Remove(ids ...string) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.unlock()

	b := r.newBatch()
	r.removeLocked(b, ids)
	r.commit(b, true)
	return nil
}

// DiffedRemove deletes every held object whose id is not in keep
func (r *Region) DiffedRemove(keep []string) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.unlock()

	retain := make(map[string]bool, len(keep))
	for _, id := range keep {
		retain[id] = true
	}
	var drop []string
	for id := range r.objects {
		if !retain[id] {
			drop = append(drop, id)
		}
	}

	b := r.newBatch()
	r.removeLocked(b, drop)
	r.commit(b, true)
	return nil
}

func (r *Region) removeLocked(b *batch, ids []string) {
	for _, id := range ids {
		o, ok := r.objects[id]
		if !ok {
			continue
		}
		b.emit(EventWillRemove, o)
		delete(r.objects, id)
		b.emit(EventDidRemove, o)
		b.touch(r.parentOf(o))
		b.related(o)
		b.changed = true
	}
}

// NotifyObjectsUpdated drops the projections of the given held objects and
// raises EventObjectUpdated for each, followed by one EventUpdated
func (r *Region) NotifyObjectsUpdated(ids ...string) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.unlock()

	b := r.newBatch()
	for _, id := range ids {
		if o, ok := r.objects[id]; ok {
			o.Invalidate()
			b.touch(id)
			b.changed = true
		}
	}
	r.commit(b, false)
	return nil
}

// Invalidate drops cached projections without raising events. With no ids
// every projection is dropped.
func (r *Region) Invalidate(ids ...string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(ids) == 0 {
		for _, o := range r.objects {
			o.Invalidate()
		}
		return
	}
	for _, id := range ids {
		if o, ok := r.objects[id]; ok {
			o.Invalidate()
		}
	}
}
