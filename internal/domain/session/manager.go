package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/vatomsync/internal/shared/id"
)

// ErrNoSession is returned when no user is signed in
var ErrNoSession = errors.New("no user session")

// Info describes the signed-in user. The zero value means signed out.
type Info struct {
	UserID string    `json:"user_id"`
	Since  time.Time `json:"since"`
}

// Active reports whether Info describes a signed-in user
func (i Info) Active() bool { return i.UserID != "" }

type subscriber struct {
	seq uint64
	fn  func(Info)
}

// Manager holds the current session and fans out changes
type Manager struct {
	mu          sync.RWMutex
	current     Info
	subscribers map[id.SubscriptionID]subscriber
	seq         uint64

	// serializes notification so subscribers see changes in order
	notifyMu sync.Mutex
}

// NewManager creates a signed-out manager
func NewManager() *Manager {
	return &Manager{subscribers: make(map[id.SubscriptionID]subscriber)}
}

// Current returns the signed-in user or ErrNoSession
func (m *Manager) Current() (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.Active() {
		return Info{}, ErrNoSession
	}
	return m.current, nil
}

// UserID returns the current user id, or "" when signed out
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.UserID
}

// Set replaces the session. Setting the same user again is a no-op.
func (m *Manager) Set(info Info) {
	if info.Active() && info.Since.IsZero() {
		info.Since = time.Now()
	}
	m.change(info)
}

// Clear signs the user out
func (m *Manager) Clear() {
	m.change(Info{})
}

// Subscribe registers fn for session changes. The returned function removes
// the subscription.
func (m *Manager) Subscribe(fn func(Info)) func() {
	sid := id.NewSubscriptionID()
	m.mu.Lock()
	m.seq++
	m.subscribers[sid] = subscriber{seq: m.seq, fn: fn}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, sid)
		m.mu.Unlock()
	}
}

func (m *Manager) change(info Info) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.current.UserID == info.UserID {
		m.mu.Unlock()
		return
	}
	m.current = info
	subs := make([]subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	for _, s := range subs {
		s.fn(info)
	}
}
