package cache

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/vatomsync/internal/shared/paths"
)

// MemoryStore keeps encoded snapshots in process
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	writes    int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

// Read loads the snapshot for key
func (m *MemoryStore) Read(key string) ([]Record, error) {
	m.mu.RLock()
	data, ok := m.snapshots[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var records []Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return records, nil
}

// Write replaces the snapshot for key
func (m *MemoryStore) Write(key string, records []Record) error {
	if err := paths.ValidateKey(key); err != nil {
		return err
	}
	data, err := sonic.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	m.mu.Lock()
	m.snapshots[key] = data
	m.writes++
	m.mu.Unlock()
	return nil
}

// Delete removes the snapshot for key
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.snapshots, key)
	m.mu.Unlock()
	return nil
}

// Keys lists stored keys
func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.snapshots))
	for k := range m.snapshots {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes snapshots whose key matches the glob pattern
func (m *MemoryStore) Clear(pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid pattern %q", pattern)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k := range m.snapshots {
		if ok, _ := doublestar.Match(pattern, k); ok {
			delete(m.snapshots, k)
			removed++
		}
	}
	return removed, nil
}

// Writes returns how many times Write succeeded
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
