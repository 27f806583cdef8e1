package region

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
)

// saver debounces snapshot writes. Each Save bumps gen; a timer only writes
// if no later Save superseded it.
type saver struct {
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool

	writeMu sync.Mutex
}

// stop cancels the pending write and reports whether there was one
func (s *saver) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	s.pending = false
	return pending
}

// Volatile reports whether the region never persists
func (r *Region) Volatile() bool { return r.opts.Store == nil }

// Save schedules a snapshot write after the save delay, replacing any write
// already scheduled
func (r *Region) Save() {
	if r.Volatile() || r.Closed() {
		return
	}

	s := &r.saver
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(r.opts.SaveDelay, func() { r.saveIfCurrent(gen) })
}

func (r *Region) saveIfCurrent(gen uint64) {
	s := &r.saver
	s.mu.Lock()
	if gen != s.gen || !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	if err := r.Flush(); err != nil {
		r.logger.Warn("Failed to write region snapshot", zap.Error(err))
	}
}

// Flush writes the snapshot now. Writes for one region never overlap.
func (r *Region) Flush() error {
	if r.Volatile() {
		return nil
	}

	r.saver.writeMu.Lock()
	defer r.saver.writeMu.Unlock()

	r.mu.RLock()
	records := make([]cache.Record, 0, len(r.objects))
	for _, id := range r.sortedIDs() {
		o := r.objects[id]
		records = append(records, cache.Record{ID: o.ID, Type: o.Type, Data: o.Data()})
	}
	r.mu.RUnlock()

	if err := r.opts.Store.Write(r.stateKey, records); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", r.stateKey, err)
	}
	r.logger.Debug("Region snapshot written", zap.Int("objects", len(records)))
	return nil
}

// LoadFromCache restores the last snapshot. It does not mark the region
// synchronized. A missing snapshot is not an error.
func (r *Region) LoadFromCache() error {
	if r.Volatile() {
		return nil
	}

	records, err := r.opts.Store.Read(r.stateKey)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", r.stateKey, err)
	}

	objects := make([]*DataObject, 0, len(records))
	for _, rec := range records {
		objects = append(objects, NewObject(rec.ID, rec.Type, rec.Data))
	}
	if err := r.add(objects, false); err != nil {
		return err
	}
	r.logger.Debug("Region restored from cache", zap.Int("objects", len(objects)))
	return nil
}

// ClearCache deletes the region's snapshot
func (r *Region) ClearCache() error {
	if r.Volatile() {
		return nil
	}
	r.saver.stop()
	return r.opts.Store.Delete(r.stateKey)
}
