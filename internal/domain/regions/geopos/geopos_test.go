package geopos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv/blockvtest"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/cache"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

var box = types.BoundingBox{
	BottomLeft: types.Coordinate{Lat: 10, Lon: 10},
	TopRight:   types.Coordinate{Lat: 20, Lon: 20},
}

type sender struct {
	mu   sync.Mutex
	sent []any
	err  error
}

func (s *sender) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, v)
	return s.err
}

func (s *sender) commands() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.sent...)
}

func dropped(id string, lat, lon float64) blockvtest.Vatom {
	return blockvtest.Vatom{ID: id, Template: "t", Owner: "u1", Dropped: true, Lat: lat, Lon: lon}
}

func newGeo(t *testing.T, api *blockvtest.API, opts Options) *region.Region {
	t.Helper()
	r, err := New(api, box, opts)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	require.NoError(t, r.Synchronize(context.Background()))
	require.NoError(t, r.Err())
	return r
}

func TestInvalidBox(t *testing.T) {
	_, err := New(blockvtest.New(), types.BoundingBox{
		BottomLeft: types.Coordinate{Lat: 30},
		TopRight:   types.Coordinate{Lat: 20},
	}, Options{})
	assert.Error(t, err)
}

func TestMatchesExactBox(t *testing.T) {
	p, err := NewPlugin(blockvtest.New(), box, Options{})
	require.NoError(t, err)

	assert.True(t, p.Matches(Kind, box))
	assert.True(t, p.Matches(Kind, &box))

	inner := box
	inner.TopRight.Lat = 19
	assert.False(t, p.Matches(Kind, inner))
	assert.False(t, p.Matches(Kind, nil))
	assert.Equal(t, "geopos:10,10,20,20", p.StateKey())
}

func TestLoadDiscoversAndMonitors(t *testing.T) {
	api := blockvtest.New()
	api.Put(dropped("in", 15, 15), dropped("out", 50, 50))
	api.Put(blockvtest.Vatom{ID: "held", Lat: 15, Lon: 15})
	s := &sender{}

	r := newGeo(t, api, Options{Sender: s})

	assert.Equal(t, []string{"in"}, r.IDs())
	cmds := s.commands()
	require.Len(t, cmds, 1)
	cmd := cmds[0].(Command)
	assert.Equal(t, "monitor", cmd.Cmd)
	assert.Equal(t, MonitorPayload{
		TopLeft:     types.Coordinate{Lat: 20, Lon: 10},
		BottomRight: types.Coordinate{Lat: 10, Lon: 20},
	}, cmd.Payload)
}

func TestMonitorFailureDoesNotFailSync(t *testing.T) {
	api := blockvtest.New()
	api.Put(dropped("in", 15, 15))

	r := newGeo(t, api, Options{Sender: &sender{err: errors.New("not connected")}})

	assert.True(t, r.Synchronized())
}

func TestNeverPersisted(t *testing.T) {
	store := cache.NewMemoryStore()
	api := blockvtest.New()
	api.Put(dropped("in", 15, 15))

	r := newGeo(t, api, Options{Region: region.Options{Store: store}})
	r.Close()

	assert.True(t, r.Volatile())
	assert.Zero(t, store.Writes())
}

func TestPickedUpVatomIsRemoved(t *testing.T) {
	api := blockvtest.New()
	api.Put(dropped("a", 15, 15), dropped("b", 16, 16))
	r := newGeo(t, api, Options{})

	r.Enqueue(types.NewMessage(types.MsgStateUpdate, map[string]any{
		"id":         "b",
		"new_object": map[string]any{"vAtom::vAtomType": map[string]any{"title": "still here"}},
	}))
	r.Enqueue(types.NewMessage(types.MsgStateUpdate, map[string]any{
		"id":         "a",
		"new_object": map[string]any{"vAtom::vAtomType": map[string]any{"dropped": false}},
	}))

	require.Eventually(t, func() bool { return !r.Has("a") }, time.Second, 5*time.Millisecond)
	o, ok := r.Object("b")
	require.True(t, ok)
	assert.Equal(t, "still here", o.Data().String("vAtom::vAtomType.title"))
}

func TestMapMessages(t *testing.T) {
	api := blockvtest.New()
	api.Put(dropped("a", 15, 15))
	r := newGeo(t, api, Options{})

	api.Put(dropped("b", 12, 12))
	r.Enqueue(types.NewMessage(types.MsgMap, map[string]any{"op": "add", "vatom_id": "b"}))
	require.Eventually(t, func() bool { return r.Has("b") }, time.Second, 5*time.Millisecond)

	r.Enqueue(types.NewMessage(types.MsgMap, map[string]any{"op": "remove", "vatom_id": "a"}))
	require.Eventually(t, func() bool { return !r.Has("a") }, time.Second, 5*time.Millisecond)
}

func TestTransferAwayFromUser(t *testing.T) {
	api := blockvtest.New()
	api.Put(dropped("a", 15, 15), dropped("b", 16, 16))
	r := newGeo(t, api, Options{UserID: "u1"})

	r.Enqueue(types.NewMessage(types.MsgInventory, map[string]any{
		"id": "b", "old_owner": "u2", "new_owner": "u3",
	}))
	r.Enqueue(types.NewMessage(types.MsgInventory, map[string]any{
		"id": "a", "old_owner": "u1", "new_owner": "u2",
	}))

	require.Eventually(t, func() bool { return !r.Has("a") }, time.Second, 5*time.Millisecond)
	assert.True(t, r.Has("b"))
}
