package children

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv/blockvtest"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

func newChildren(t *testing.T, api *blockvtest.API, parent string) *region.Region {
	t.Helper()
	r := New(api, parent, region.Options{})
	t.Cleanup(r.Close)
	require.NoError(t, r.Synchronize(context.Background()))
	require.NoError(t, r.Err())
	return r
}

func moveTo(id, parent string) types.Message {
	return types.NewMessage(types.MsgStateUpdate, map[string]any{
		"id": id,
		"new_object": map[string]any{
			"vAtom::vAtomType": map[string]any{"parent_id": parent},
		},
	})
}

func TestMatches(t *testing.T) {
	root := NewPlugin(blockvtest.New(), "")
	assert.True(t, root.Matches(Kind, ""))
	assert.True(t, root.Matches(Kind, "."))
	assert.False(t, root.Matches(Kind, "p1"))
	assert.Equal(t, "children:.", root.StateKey())

	p := NewPlugin(blockvtest.New(), "p1")
	assert.True(t, p.Matches(Kind, "p1"))
	assert.False(t, p.Matches(Kind, nil))
}

func TestLoadPagesChildren(t *testing.T) {
	api := blockvtest.New()
	for i := range 250 {
		api.Put(blockvtest.Vatom{ID: fmt.Sprintf("c%03d", i), Parent: "p1"})
	}
	api.Put(blockvtest.Vatom{ID: "other", Parent: "p2"})

	r := newChildren(t, api, "p1")

	assert.Equal(t, 250, r.Len())
	assert.False(t, r.Has("other"))
	assert.Equal(t, []int{1, 2, 3, 4}, api.Pages())
}

func TestLoadPrunesDeparted(t *testing.T) {
	api := blockvtest.New()
	api.Put(blockvtest.Vatom{ID: "a", Parent: "p1"}, blockvtest.Vatom{ID: "b", Parent: "p1"})
	r := newChildren(t, api, "p1")

	api.Put(blockvtest.Vatom{ID: "b", Parent: "p2"})
	require.NoError(t, r.ForceSynchronize(context.Background()))

	assert.Equal(t, []string{"a"}, r.IDs())
}

func TestMovesInAndOut(t *testing.T) {
	api := blockvtest.New()
	api.Put(blockvtest.Vatom{ID: "a", Parent: "p1"}, blockvtest.Vatom{ID: "b", Parent: "p2"})
	r := newChildren(t, api, "p1")

	api.Put(blockvtest.Vatom{ID: "b", Parent: "p1"})
	r.Enqueue(moveTo("b", "p1"))
	require.Eventually(t, func() bool { return r.Has("b") }, time.Second, 5*time.Millisecond)

	r.Enqueue(moveTo("a", "p3"))
	require.Eventually(t, func() bool { return !r.Has("a") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, api.Calls("get"))
}

func TestTransferRemoves(t *testing.T) {
	api := blockvtest.New()
	api.Put(blockvtest.Vatom{ID: "a", Parent: "p1", Owner: "u1"})
	r := newChildren(t, api, "p1")

	r.Enqueue(types.NewMessage(types.MsgInventory, map[string]any{
		"id": "a", "old_owner": "u1", "new_owner": "u2",
	}))
	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}
