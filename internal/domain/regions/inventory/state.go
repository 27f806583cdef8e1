package inventory

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

const stateRecordID = "sync"

// syncState survives restarts next to the region snapshot
type syncState struct {
	Hash            string
	FaceActionFetch time.Time
}

func (p *Plugin) stateKey() string { return p.StateKey() + ":sync" }

// readState loads the persisted state once
func (p *Plugin) readState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateRead || p.store == nil {
		p.stateRead = true
		return
	}
	p.stateRead = true

	records, err := p.store.Read(p.stateKey())
	if errors.Is(err, cache.ErrNotFound) {
		return
	}
	if err != nil {
		p.logger.Warn("Failed to read inventory sync state", zap.Error(err))
		return
	}
	for _, rec := range records {
		if rec.ID != stateRecordID {
			continue
		}
		p.state.Hash = rec.Data.String("hash")
		if ts := rec.Data.String("last_face_action_fetch"); ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				p.state.FaceActionFetch = t
			}
		}
	}
}

func (p *Plugin) writeState() {
	if p.store == nil {
		return
	}

	p.mu.Lock()
	fields := map[string]payload.Value{"hash": payload.String(p.state.Hash)}
	if !p.state.FaceActionFetch.IsZero() {
		fields["last_face_action_fetch"] = payload.String(p.state.FaceActionFetch.UTC().Format(time.RFC3339Nano))
	}
	p.mu.Unlock()

	rec := cache.Record{ID: stateRecordID, Type: stateRecordID, Data: payload.Object(fields)}
	if err := p.store.Write(p.stateKey(), []cache.Record{rec}); err != nil {
		p.logger.Warn("Failed to write inventory sync state", zap.Error(err))
	}
}
