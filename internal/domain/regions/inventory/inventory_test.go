package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv/blockvtest"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

const user = "u1"

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newInventory(t *testing.T, api blockv.API, store cache.Store) (*region.Region, *Plugin) {
	t.Helper()
	p, err := NewPlugin(api, user, Options{
		Region: region.Options{Store: store},
		Now:    func() time.Time { return epoch },
	})
	require.NoError(t, err)
	r := region.New(p, blockv.RegionOptions(region.Options{Store: store}))
	t.Cleanup(r.Close)
	return r, p
}

func owned(id string, sync uint64) blockvtest.Vatom {
	return blockvtest.Vatom{ID: id, Template: "tpl", Owner: user, Sync: sync}
}

func TestNewRequiresUser(t *testing.T) {
	_, err := New(blockvtest.New(), "", Options{})
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestMatches(t *testing.T) {
	_, p := newInventory(t, blockvtest.New(), nil)

	assert.True(t, p.Matches(Kind, nil))
	assert.True(t, p.Matches(Kind, ""))
	assert.True(t, p.Matches(Kind, user))
	assert.False(t, p.Matches(Kind, "u2"))
	assert.False(t, p.Matches("geopos", nil))
	assert.Equal(t, "inventory:u1", p.StateKey())
}

func TestColdSyncPagesUntilEmpty(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	for i := range 200 {
		api.Put(owned(fmt.Sprintf("v%03d", i), 1))
	}
	r, p := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))
	require.NoError(t, r.Err())

	assert.Equal(t, 200, r.Len())
	assert.Equal(t, []int{1, 2, 3, 4}, api.Pages())
	assert.Zero(t, api.Calls("index"))
	assert.Equal(t, "h1", p.Hash())
}

func TestFullFetchWidensRounds(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	for i := range 550 {
		api.Put(owned(fmt.Sprintf("v%03d", i), 1))
	}
	r, _ := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.Equal(t, 550, r.Len())
	// a round of 4 pages, then a round of 8 in which page 7 is empty
	assert.Len(t, api.Pages(), 12)
}

func TestPageCeiling(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	for i := range 50 {
		api.Put(owned(fmt.Sprintf("v%02d", i), 1))
	}
	p, err := NewPlugin(api, user, Options{Tuning: config.InventoryConfig{PageSize: 5, InitialPages: 2, PageCeiling: 3}})
	require.NoError(t, err)
	r := region.New(p, region.Options{})
	t.Cleanup(r.Close)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.Equal(t, 15, r.Len())
	assert.Equal(t, []int{1, 2, 3}, api.Pages())
}

func TestUnchangedHashSkipsObjectFetches(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	r, _ := newInventory(t, api, nil)
	ctx := context.Background()

	require.NoError(t, r.Synchronize(ctx))
	pages := len(api.Pages())

	require.NoError(t, r.ForceSynchronize(ctx))

	assert.Len(t, api.Pages(), pages)
	assert.Zero(t, api.Calls("index"))
	assert.Zero(t, api.Calls("get"))
	assert.Equal(t, 2, api.Calls("face_changes"))
	assert.Equal(t, 2, api.Calls("action_changes"))
	assert.True(t, r.Has("v1"))
}

func TestChangedHashDiffsAgainstIndex(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("id1", 2), owned("id3", 1))
	r, p := newInventory(t, api, nil)
	ctx := context.Background()

	require.NoError(t, r.Synchronize(ctx))
	require.True(t, r.Has("id3"))

	api.SetHash("h2")
	api.Delete("id3")
	api.Put(owned("id1", 3), owned("id2", 5))
	pages := len(api.Pages())

	require.NoError(t, r.ForceSynchronize(ctx))

	gets := api.Gets()
	require.Len(t, gets, 1)
	assert.ElementsMatch(t, []string{"id1", "id2"}, gets[0])
	assert.Len(t, api.Pages(), pages)
	assert.Equal(t, []string{"id1", "id2"}, r.IDs())

	o, ok := r.Object("id1")
	require.True(t, ok)
	assert.EqualValues(t, 3, o.Data().Int("sync"))
	assert.Equal(t, "h2", p.Hash())
}

func TestDiffSkipsZeroSyncNumbers(t *testing.T) {
	plan := diff(
		map[string]uint64{"a": 2, "b": 4, "c": 1},
		map[string]uint64{"a": 0, "b": 5, "d": 1},
	)
	assert.Equal(t, []string{"d"}, plan.add)
	assert.Equal(t, []string{"b"}, plan.update)
	assert.Equal(t, []string{"c"}, plan.remove)
}

func TestIndexFailureFallsBackToPaging(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	r, p := newInventory(t, api, nil)
	ctx := context.Background()
	require.NoError(t, r.Synchronize(ctx))

	api.SetHash("h2")
	api.Put(owned("v2", 1))
	api.Fail("index", errors.New("index down"))
	pages := len(api.Pages())

	require.NoError(t, r.ForceSynchronize(ctx))

	assert.Greater(t, len(api.Pages()), pages)
	assert.True(t, r.Has("v2"))
	assert.Empty(t, p.Hash())
}

func TestFallbackLeavesHashForNextDiff(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1), owned("v2", 1))
	r, p := newInventory(t, api, nil)
	ctx := context.Background()
	require.NoError(t, r.Synchronize(ctx))

	api.Delete("v2")
	api.SetHash("h2")
	api.Fail("index", errors.New("index down"))
	require.NoError(t, r.ForceSynchronize(ctx))
	assert.Equal(t, []string{"v1", "v2"}, r.IDs())

	api.Fail("index", nil)
	require.NoError(t, r.ForceSynchronize(ctx))
	assert.Equal(t, []string{"v1"}, r.IDs())
	assert.Equal(t, "h2", p.Hash())

	require.NoError(t, r.ForceSynchronize(ctx))
	assert.Equal(t, []string{"v1"}, r.IDs())
}

func TestRestoredSnapshotWithoutHashDiffs(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	store := cache.NewMemoryStore()

	var records []cache.Record
	for _, v := range []blockvtest.Vatom{owned("v1", 1), owned("v2", 1)} {
		o := v.Object()
		records = append(records, cache.Record{ID: o.ID, Type: o.Type, Data: o.Data()})
	}
	require.NoError(t, store.Write("inventory:u1", records))

	r, p := newInventory(t, api, store)
	require.NoError(t, r.LoadFromCache())
	require.True(t, r.Has("v2"))

	require.NoError(t, r.Synchronize(context.Background()))

	assert.Equal(t, 1, api.Calls("index"))
	assert.Empty(t, api.Pages())
	assert.Equal(t, []string{"v1"}, r.IDs())
	assert.Equal(t, "h1", p.Hash())
}

func TestHashFailureFallsBackToPaging(t *testing.T) {
	api := blockvtest.New()
	api.Fail("hash", errors.New("hash down"))
	api.Put(owned("v1", 1))
	r, p := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.True(t, r.Has("v1"))
	assert.True(t, r.Synchronized())
	assert.Empty(t, p.Hash())
}

func TestPageFailureFailsSync(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Fail("page", errors.New("page down"))
	r, p := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.Error(t, r.Err())
	assert.False(t, r.Synchronized())
	assert.Empty(t, p.Hash())
}

func TestWatermarkAdvancesToSyncStart(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	r, p := newInventory(t, api, nil)
	ctx := context.Background()

	require.NoError(t, r.Synchronize(ctx))
	assert.Equal(t, epoch, p.Watermark())

	require.NoError(t, r.ForceSynchronize(ctx))

	since := api.Since()
	require.Len(t, since, 2)
	assert.Equal(t, time.UnixMilli(0), since[0])
	assert.Equal(t, epoch, since[1])
}

func TestMetadataFailureKeepsWatermark(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	api.Fail("action_changes", errors.New("boom"))
	r, p := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.NoError(t, r.Err())
	assert.True(t, p.Watermark().IsZero())
}

func TestMetadataChangesApplied(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	api.AddFace("f-old", "tpl")
	face := region.NewObject("f-new", region.TypeFace, payload.MustFromAny(map[string]any{
		"id": "f-new", "template": "tpl",
	}))
	api.SetFaceChanges(
		blockv.Change{Op: blockv.OpCreate, ID: "f-new", Template: "tpl", Object: face},
		blockv.Change{Op: blockv.OpDelete, ID: "f-old", Template: "tpl"},
		blockv.Change{Op: blockv.OpCreate, ID: "f-other", Template: "other", Object: face},
	)
	r, _ := newInventory(t, api, nil)

	require.NoError(t, r.Synchronize(context.Background()))

	assert.True(t, r.Has("f-new"))
	assert.False(t, r.Has("f-old"))
	assert.False(t, r.Has("f-other"))
}

func TestStateUpdateInvalidatesHash(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	r, p := newInventory(t, api, nil)
	ctx := context.Background()
	require.NoError(t, r.Synchronize(ctx))

	r.Enqueue(types.NewMessage(types.MsgStateUpdate, map[string]any{
		"id":         "v1",
		"new_object": map[string]any{"title": "renamed"},
	}))
	require.Eventually(t, func() bool { return p.Hash() == "" }, time.Second, 5*time.Millisecond)

	// the hash is unchanged server-side, yet the stale state forces a diff
	require.NoError(t, r.ForceSynchronize(ctx))
	assert.Equal(t, 1, api.Calls("index"))
	assert.Equal(t, "h1", p.Hash())
}

func TestInventoryTransfers(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	r, _ := newInventory(t, api, nil)
	require.NoError(t, r.Synchronize(context.Background()))

	api.Put(owned("v2", 1))
	r.Enqueue(types.NewMessage(types.MsgInventory, map[string]any{
		"id": "v2", "old_owner": "u2", "new_owner": user,
	}))
	require.Eventually(t, func() bool { return r.Has("v2") }, time.Second, 5*time.Millisecond)

	r.Enqueue(types.NewMessage(types.MsgInventory, map[string]any{
		"id": "v1", "old_owner": user, "new_owner": "u2",
	}))
	require.Eventually(t, func() bool { return !r.Has("v1") }, time.Second, 5*time.Millisecond)
}

func TestSessionChangeClosesRegion(t *testing.T) {
	r, _ := newInventory(t, blockvtest.New(), nil)

	r.SessionChanged(session.Info{UserID: user})
	assert.False(t, r.Closed())

	r.SessionChanged(session.Info{UserID: "u2"})
	assert.True(t, r.Closed())
}

func TestSyncStatePersists(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1))
	store := cache.NewMemoryStore()
	ctx := context.Background()

	r, _ := newInventory(t, api, store)
	require.NoError(t, r.Synchronize(ctx))
	r.Close()
	pages := len(api.Pages())

	r2, p2 := newInventory(t, api, store)
	require.NoError(t, r2.LoadFromCache())
	require.NoError(t, r2.Synchronize(ctx))

	assert.Equal(t, "h1", p2.Hash())
	assert.Equal(t, epoch, p2.Watermark())
	assert.Len(t, api.Pages(), pages)
	assert.True(t, r2.Has("v1"))
}

func TestSyncStateSurvivesCrash(t *testing.T) {
	api := blockvtest.New()
	api.SetHash("h1")
	api.Put(owned("v1", 1), owned("v2", 1))
	store := cache.NewMemoryStore()
	ctx := context.Background()

	// the first region is never closed, so no debounced save runs
	r, _ := newInventory(t, api, store)
	require.NoError(t, r.Synchronize(ctx))

	r2, p2 := newInventory(t, api, store)
	require.NoError(t, r2.LoadFromCache())
	require.NoError(t, r2.Synchronize(ctx))

	assert.True(t, r2.Synchronized())
	assert.Equal(t, []string{"v1", "v2"}, r2.IDs())
	assert.Equal(t, "h1", p2.Hash())
}
