package vatom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

type mapView map[string]*region.DataObject

func (m mapView) Lookup(id string) (*region.DataObject, bool) {
	o, ok := m[id]
	return o, ok
}

func (m mapView) Each(fn func(o *region.DataObject) bool) {
	for _, o := range m {
		if !fn(o) {
			return
		}
	}
}

func vatomObject(id, template, parent string) *region.DataObject {
	return region.NewObject(id, region.TypeVatom, payload.MustFromAny(map[string]any{
		"id":            id,
		"sync":          4.0,
		"when_created":  "2024-03-01T10:00:00Z",
		"private":       map[string]any{"score": 10.0},
		"vAtom::vAtomType": map[string]any{
			"template":  template,
			"parent_id": parent,
			"owner":     "u1",
			"title":     "Coin",
			"dropped":   true,
			"geo_pos":   map[string]any{"coordinates": []any{18.4, -33.9}},
		},
	}))
}

func TestProject(t *testing.T) {
	v := vatomObject("v1", "tpl", ".")
	face := region.NewObject("f1", region.TypeFace, payload.MustFromAny(map[string]any{
		"template": "tpl",
		"properties": map[string]any{
			"display_url": "native://image",
			"constraints": map[string]any{"view_mode": "icon", "platform": "generic"},
			"resources":   []any{"ActivatedImage"},
		},
	}))
	otherFace := region.NewObject("f2", region.TypeFace, payload.MustFromAny(map[string]any{"template": "other"}))
	action := region.NewObject("tpl::Action::Transfer", region.TypeAction, payload.MustFromAny(map[string]any{"meta": map[string]any{}}))
	view := mapView{"v1": v, "f1": face, "f2": otherFace, action.ID: action}

	got, ok := Project(view, v).(*Vatom)
	require.True(t, ok)
	assert.Equal(t, "v1", got.ID)
	assert.Equal(t, "tpl", got.Template)
	assert.Equal(t, "u1", got.Owner)
	assert.True(t, got.IsRoot())
	assert.True(t, got.Dropped)
	assert.Equal(t, int64(4), got.Sync)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), got.WhenCreated)
	assert.Equal(t, int64(10), got.Private.Int("score"))
	require.NotNil(t, got.Position)
	assert.InDelta(t, -33.9, got.Position.Lat, 1e-9)
	assert.InDelta(t, 18.4, got.Position.Lon, 1e-9)

	require.Len(t, got.Faces, 1)
	assert.Equal(t, "icon", got.Faces[0].ViewMode)
	assert.Equal(t, []string{"ActivatedImage"}, got.Faces[0].Resources)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "Transfer", got.Actions[0].ShortName())

	assert.Nil(t, Project(view, face))
	assert.Nil(t, Project(view, action))
}

func TestRelatedAndParent(t *testing.T) {
	v1 := vatomObject("v1", "tpl", "folder")
	v2 := vatomObject("v2", "tpl", ".")
	v3 := vatomObject("v3", "other", ".")
	action := region.NewObject("tpl::Action::Drop", region.TypeAction, payload.EmptyObject())
	view := mapView{"v1": v1, "v2": v2, "v3": v3}

	assert.Equal(t, []string{"v1", "v2"}, Related(view, action))
	assert.Nil(t, Related(view, v1))
	assert.Equal(t, "folder", ParentOf(v1))
	assert.Empty(t, ParentOf(action))
	assert.Equal(t, "tpl", TemplateOf(action))
	assert.Equal(t, "tpl", ActionTemplate("tpl::Action::Drop"))
}
