package region

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// messageQueue processes push messages one at a time in arrival order,
// holding them while paused
type messageQueue struct {
	mu      sync.Mutex
	items   []types.Message
	paused  int
	running bool
	closed  bool
	idle    chan struct{}
	handle  func(types.Message)
}

func newMessageQueue(handle func(types.Message)) *messageQueue {
	return &messageQueue{handle: handle}
}

func (q *messageQueue) push(msg types.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, msg)
	q.startLocked()
}

func (q *messageQueue) pause() {
	q.mu.Lock()
	q.paused++
	q.mu.Unlock()
}

func (q *messageQueue) resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused > 0 {
		q.paused--
	}
	q.startLocked()
}

func (q *messageQueue) startLocked() {
	if q.running || q.closed || q.paused > 0 || len(q.items) == 0 {
		return
	}
	q.running = true
	q.idle = make(chan struct{})
	go q.drain(q.idle)
}

func (q *messageQueue) drain(idle chan struct{}) {
	defer close(idle)
	for {
		q.mu.Lock()
		if q.closed || q.paused > 0 || len(q.items) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		msg := q.items[0]
		q.items[0] = types.Message{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.handle(msg)
	}
}

// wait blocks until the drain goroutine, if any, has stopped
func (q *messageQueue) wait() {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	if idle != nil {
		<-idle
	}
}

func (q *messageQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

func (q *messageQueue) state() (paused bool, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused > 0, len(q.items)
}

// Enqueue queues a push message for processing
func (r *Region) Enqueue(msg types.Message) {
	r.queue.push(msg)
}

// PauseMessages holds queued push messages until a matching
// ResumeMessages. Pauses nest. A message already being handled finishes.
func (r *Region) PauseMessages() {
	r.queue.pause()
}

// ResumeMessages releases one pause and continues processing when none
// remain
func (r *Region) ResumeMessages() {
	r.queue.resume()
}

// WithMessagesPaused runs fn with push processing paused, resuming even when
// fn fails or panics
func (r *Region) WithMessagesPaused(fn func() error) error {
	r.PauseMessages()
	defer r.ResumeMessages()
	return fn()
}

func (r *Region) processMessage(msg types.Message) {
	if r.Closed() {
		return
	}
	h, ok := r.plugin.(MessageHandler)
	if !ok {
		return
	}

	if err := r.handleMessage(h, msg); err != nil {
		r.logger.Warn("Failed to process push message",
			zap.String("msg_type", msg.Type),
			zap.Error(err),
		)
	}
}

func (r *Region) handleMessage(h MessageHandler, msg types.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return h.HandleMessage(r.ctx, r, msg)
}
