package region

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/vatomsync/internal/shared/id"
)

// EventKind identifies a region notification
type EventKind int

const (
	// EventUpdated fires once per mutation batch
	EventUpdated EventKind = iota
	EventWillAdd
	EventDidAdd
	EventWillUpdate
	EventDidUpdate
	EventWillRemove
	EventDidRemove
	// EventObjectUpdated asks observers of one object to refresh
	EventObjectUpdated
	EventError
	EventStabilized
	EventDestabilized
	EventSynchronizing
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventWillAdd:
		return "will_add"
	case EventDidAdd:
		return "did_add"
	case EventWillUpdate:
		return "will_update"
	case EventDidUpdate:
		return "did_update"
	case EventWillRemove:
		return "will_remove"
	case EventDidRemove:
		return "did_remove"
	case EventObjectUpdated:
		return "object_updated"
	case EventError:
		return "error"
	case EventStabilized:
		return "stabilized"
	case EventDestabilized:
		return "destabilized"
	case EventSynchronizing:
		return "synchronizing"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a region notification. ID and Object are set for per-object
// events; Object is a snapshot taken when the event was raised.
type Event struct {
	Kind   EventKind
	ID     string
	Object *DataObject
	Err    error
}

type queued struct {
	ev     Event
	marker chan struct{}
}

type listener struct {
	seq  uint64
	kind EventKind
	all  bool
	fn   func(Event)
}

// dispatcher delivers events in the order they were raised on its own
// goroutine, so listeners are free to call back into the region.
type dispatcher struct {
	mu        sync.Mutex
	queue     []queued
	listeners map[id.ListenerID]listener
	seq       uint64
	closed    bool
	wake      chan struct{}
	done      chan struct{}
	observe   func(Event)
}

func newDispatcher(observe func(Event)) *dispatcher {
	d := &dispatcher{
		listeners: make(map[id.ListenerID]listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		observe:   observe,
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(l listener) func() {
	lid := id.NewListenerID()
	d.mu.Lock()
	d.seq++
	l.seq = d.seq
	d.listeners[lid] = l
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, lid)
		d.mu.Unlock()
	}
}

func (d *dispatcher) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	for _, ev := range events {
		d.queue = append(d.queue, queued{ev: ev})
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close delivers what is queued, then stops the goroutine
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// flush blocks until every event raised before the call has been delivered
func (d *dispatcher) flush() {
	marker := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.queue = append(d.queue, queued{marker: marker})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	select {
	case <-marker:
	case <-d.done:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			batch := d.queue
			d.queue = nil
			subs := d.snapshot()
			d.mu.Unlock()

			for _, q := range batch {
				if q.marker != nil {
					close(q.marker)
					continue
				}
				d.deliver(q.ev, subs)
			}
		}
	}
}

func (d *dispatcher) snapshot() []listener {
	subs := make([]listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		subs = append(subs, l)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	return subs
}

func (d *dispatcher) deliver(ev Event, subs []listener) {
	if d.observe != nil {
		d.observe(ev)
	}
	for _, l := range subs {
		if l.all || l.kind == ev.Kind {
			l.fn(ev)
		}
	}
}
