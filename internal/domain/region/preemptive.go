package region

import (
	"sync"

	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// Undo reverses a preemptive mutation. Calling it more than once has no
// further effect.
type Undo func()

func noopUndo() {}

// PreemptiveChange sets the value at a dotted path of a held object ahead of
// server confirmation. The returned Undo restores the previous value at that
// path; it does nothing if the object has been removed since.
func (r *Region) PreemptiveChange(id, path string, value payload.Value) (Undo, error) {
	if err := r.lock(); err != nil {
		return noopUndo, err
	}
	defer r.unlock()

	o, ok := r.objects[id]
	if !ok {
		return noopUndo, ErrObjectNotFound
	}

	keys := payload.SplitPath(path)
	previous, existed := o.Data().Get(keys...)
	r.setPathLocked(o, keys, value, true)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := r.lock(); err != nil {
				return
			}
			defer r.unlock()

			if current, ok := r.objects[id]; !ok || current != o {
				return
			}
			r.setPathLocked(o, keys, previous, existed)
		})
	}, nil
}

// setPathLocked writes value at keys, or deletes the key when present is
// false, raising update events
func (r *Region) setPathLocked(o *DataObject, keys []string, value payload.Value, present bool) {
	before := o.Data()
	var after payload.Value
	if present {
		after = before.Set(keys, value)
	} else {
		after = before.Delete(keys)
	}

	b := r.newBatch()
	if r.opts.EmitNoopUpdates || !after.Equal(before) {
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
}

// PreemptiveRemove removes a held object ahead of server confirmation. The
// returned Undo puts it back unless something else now occupies its id.
func (r *Region) PreemptiveRemove(id string) (Undo, error) {
	if err := r.lock(); err != nil {
		return noopUndo, err
	}
	defer r.unlock()

	o, ok := r.objects[id]
	if !ok {
		return noopUndo, ErrObjectNotFound
	}

	b := r.newBatch()
	r.removeLocked(b, []string{id})
	r.commit(b, true)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := r.lock(); err != nil {
				return
			}
			defer r.unlock()

			if _, taken := r.objects[id]; taken {
				return
			}
			b := r.newBatch()
			b.emit(EventWillAdd, o)
			r.objects[id] = o
			b.emit(EventDidAdd, o)
			b.parentMoved("", r.parentOf(o))
			b.related(o)
			b.changed = true
			r.commit(b, true)
		})
	}, nil
}
