package inventory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
)

// Load runs one inventory sync with push processing paused
func (p *Plugin) Load(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	p.readState()

	var result region.LoadResult
	err := r.WithMessagesPaused(func() error {
		started := p.now()

		res, err := p.syncObjects(ctx, r)
		if err != nil {
			return err
		}
		result = res

		if err := p.syncMetadata(ctx, r, started); err != nil {
			p.logger.Warn("Inventory metadata sync failed", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return region.LoadResult{}, err
	}

	// the snapshot must be on disk before the hash that vouches for it
	if err := r.Flush(); err != nil {
		p.logger.Warn("Inventory snapshot not written, keeping previous sync state", zap.Error(err))
		return result, nil
	}
	p.writeState()
	return result, nil
}

func (p *Plugin) syncObjects(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	hash, err := p.api.InventoryHash(ctx)
	if err != nil {
		p.logger.Warn("Inventory hash unavailable, fetching everything", zap.Error(err))
		return p.fallback(ctx, r)
	}

	p.mu.Lock()
	previous, stale := p.state.Hash, p.stale
	p.mu.Unlock()

	switch {
	case previous == "" && !stale && len(r.Filter(isVatom)) == 0:
		p.metrics.RecordInventoryPath(PathCold)
		p.logger.Debug("No stored inventory hash, fetching everything")
		res, complete, err := p.fullFetch(ctx, r)
		if err != nil {
			return region.LoadResult{}, err
		}
		if complete {
			p.setHash(hash)
		} else {
			p.invalidateHash()
		}
		return res, nil

	case previous == hash:
		p.metrics.RecordInventoryPath(PathUnchanged)
		p.logger.Debug("Inventory hash unchanged")
		return region.Partial(), nil
	}

	p.metrics.RecordInventoryPath(PathDiff)
	if err := p.diffSync(ctx, r); err != nil {
		p.logger.Warn("Inventory diff sync failed, fetching everything", zap.Error(err))
		return p.fallback(ctx, r)
	}
	p.setHash(hash)
	return region.Partial(), nil
}

// fallback pages through the inventory without pruning, so vatoms deleted
// server-side may survive it. The hash is left invalid to make the next sync
// diff against the index.
func (p *Plugin) fallback(ctx context.Context, r *region.Region) (region.LoadResult, error) {
	p.metrics.RecordInventoryPath(PathFallback)
	res, _, err := p.fullFetch(ctx, r)
	if err != nil {
		return region.LoadResult{}, err
	}
	p.invalidateHash()
	return res, nil
}

func (p *Plugin) setHash(hash string) {
	p.mu.Lock()
	p.state.Hash = hash
	p.stale = false
	p.mu.Unlock()
}

// diffSync fetches the sync-number index and reconciles against held vatoms
func (p *Plugin) diffSync(ctx context.Context, r *region.Region) error {
	remote, err := p.fetchIndex(ctx)
	if err != nil {
		return err
	}

	local := make(map[string]uint64)
	for _, o := range r.Filter(isVatom) {
		local[o.ID] = uint64(max(o.Data().Int(vatom.PathSync), 0))
	}

	plan := diff(local, remote)
	p.logger.Debug("Inventory diff",
		zap.Int("add", len(plan.add)),
		zap.Int("update", len(plan.update)),
		zap.Int("remove", len(plan.remove)),
	)

	fetch := append(plan.add, plan.update...)
	if len(fetch) > 0 {
		objs, err := blockv.FetchVatoms(ctx, p.api, fetch, p.tuning.BatchSize)
		if err != nil {
			return err
		}
		if err := r.Add(objs.All()...); err != nil {
			return err
		}
	}
	if len(plan.remove) > 0 {
		return r.Remove(plan.remove...)
	}
	return nil
}

func (p *Plugin) fetchIndex(ctx context.Context) (map[string]uint64, error) {
	remote := make(map[string]uint64)
	seen := make(map[string]bool)
	cursor := ""
	for {
		page, err := p.api.InventoryIndex(ctx, cursor, p.tuning.IndexPageSize)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			remote[e.ID] = e.Sync
		}
		if page.Next == "" {
			return remote, nil
		}
		if seen[page.Next] {
			return nil, fmt.Errorf("inventory index repeated cursor %q", page.Next)
		}
		seen[page.Next] = true
		cursor = page.Next
	}
}

type diffPlan struct {
	add    []string
	update []string
	remove []string
}

// diff compares held sync numbers with the index. A remote sync number of
// zero means nothing meaningful changed.
func diff(local, remote map[string]uint64) diffPlan {
	var plan diffPlan
	for id, sync := range remote {
		held, ok := local[id]
		switch {
		case !ok:
			plan.add = append(plan.add, id)
		case held != sync && sync != 0:
			plan.update = append(plan.update, id)
		}
	}
	for id := range local {
		if _, ok := remote[id]; !ok {
			plan.remove = append(plan.remove, id)
		}
	}
	slices.Sort(plan.add)
	slices.Sort(plan.update)
	slices.Sort(plan.remove)
	return plan
}

// fullFetch pages through the whole inventory. Rounds fetch pages
// concurrently, doubling the round width each time, until a page is empty or
// the page ceiling is reached. Nothing is pruned. The bool is false when the
// ceiling cut the fetch short.
func (p *Plugin) fullFetch(ctx context.Context, r *region.Region) (region.LoadResult, bool, error) {
	width := p.tuning.InitialPages
	next := 1
	total := 0

	for next <= p.tuning.PageCeiling {
		n := min(width, p.tuning.MaxConcurrentPages, p.tuning.PageCeiling-next+1)
		results := make([]blockv.Objects, n)

		g, gctx := errgroup.WithContext(ctx)
		for i := range n {
			page := next + i
			g.Go(func() error {
				objs, err := p.api.InventoryPage(gctx, blockv.ParentAny, page, p.tuning.PageSize)
				if err != nil {
					return fmt.Errorf("inventory page %d: %w", page, err)
				}
				results[i] = objs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return region.LoadResult{}, false, err
		}

		var round blockv.Objects
		exhausted := false
		for _, res := range results {
			if len(res.Vatoms) == 0 {
				exhausted = true
				break
			}
			round.Merge(res)
		}
		if err := r.Add(round.All()...); err != nil {
			return region.LoadResult{}, false, err
		}
		total += len(round.Vatoms)

		if exhausted {
			p.logger.Debug("Inventory fetched", zap.Int("vatoms", total), zap.Int("pages", next+n-1))
			return region.Partial(), true, nil
		}
		next += n
		width *= 2
	}

	p.logger.Warn("Inventory page ceiling reached", zap.Int("ceiling", p.tuning.PageCeiling), zap.Int("vatoms", total))
	return region.Partial(), false, nil
}

// syncMetadata applies face and action changes for held templates since the
// watermark, then moves the watermark to started
func (p *Plugin) syncMetadata(ctx context.Context, r *region.Region, started time.Time) error {
	templates := heldTemplates(r)
	since := p.Watermark()
	if since.IsZero() {
		since = time.UnixMilli(0)
	}

	var changes []blockv.Change
	for _, batch := range blockv.Chunk(templates, blockv.DefaultBatchSize) {
		faces, err := p.api.FaceChanges(ctx, batch, since)
		if err != nil {
			return fmt.Errorf("face changes: %w", err)
		}
		actions, err := p.api.ActionChanges(ctx, batch, since)
		if err != nil {
			return fmt.Errorf("action changes: %w", err)
		}
		changes = append(changes, faces...)
		changes = append(changes, actions...)
	}

	if err := applyChanges(r, changes); err != nil {
		return err
	}

	p.mu.Lock()
	p.state.FaceActionFetch = started
	p.mu.Unlock()
	return nil
}

func applyChanges(r *region.Region, changes []blockv.Change) error {
	if len(changes) == 0 {
		return nil
	}

	var upserts []*region.DataObject
	var deletes []string
	touched := make(map[string]bool)
	for _, c := range changes {
		touched[c.Template] = true
		if c.Op == blockv.OpDelete {
			deletes = append(deletes, c.ID)
			continue
		}
		upserts = append(upserts, c.Object)
	}

	if err := r.Add(upserts...); err != nil {
		return err
	}
	if err := r.Remove(deletes...); err != nil {
		return err
	}

	var affected []string
	for _, o := range r.Filter(isVatom) {
		if touched[vatom.TemplateOf(o)] {
			affected = append(affected, o.ID)
		}
	}
	return r.NotifyObjectsUpdated(affected...)
}

func heldTemplates(r *region.Region) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range r.Filter(isVatom) {
		if t := vatom.TemplateOf(o); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

func isVatom(o *region.DataObject) bool { return o.Type == region.TypeVatom }
