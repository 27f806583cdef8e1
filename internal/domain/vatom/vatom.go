package vatom

import (
	"sort"
	"strings"
	"time"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Vatom is the reader-facing projection of a vatom object
type Vatom struct {
	ID                string            `json:"id"`
	ParentID          string            `json:"parent_id"`
	Owner             string            `json:"owner"`
	Template          string            `json:"template"`
	TemplateVariation string            `json:"template_variation"`
	Title             string            `json:"title,omitempty"`
	Description       string            `json:"description,omitempty"`
	Category          string            `json:"category,omitempty"`
	Dropped           bool              `json:"dropped"`
	Transferable      bool              `json:"transferable"`
	Acquirable        bool              `json:"acquirable"`
	InContract        bool              `json:"in_contract"`
	Position          *types.Coordinate `json:"position,omitempty"`
	Sync              int64             `json:"sync"`
	WhenCreated       time.Time         `json:"when_created,omitzero"`
	WhenModified      time.Time         `json:"when_modified,omitzero"`
	Private           payload.Value     `json:"private"`
	Faces             []*Face           `json:"faces"`
	Actions           []*Action         `json:"actions"`
}

// IsRoot reports whether the vatom sits at the top of its owner's inventory
func (v *Vatom) IsRoot() bool {
	return v.ParentID == "" || v.ParentID == RootParentID
}

// Face is one visual representation of a template
type Face struct {
	ID         string        `json:"id"`
	Template   string        `json:"template"`
	DisplayURL string        `json:"display_url"`
	ViewMode   string        `json:"view_mode"`
	Platform   string        `json:"platform"`
	Resources  []string      `json:"resources,omitempty"`
	Data       payload.Value `json:"data"`
}

// Action is an operation a template supports
type Action struct {
	Name     string        `json:"name"`
	Template string        `json:"template"`
	Data     payload.Value `json:"data"`
}

// ShortName returns the action name without its template prefix
func (a *Action) ShortName() string {
	if _, name, ok := strings.Cut(a.Name, actionSeparator); ok {
		return name
	}
	return a.Name
}

// Project is a region.Plugin Map: vatoms become *Vatom with their
// template's faces and actions attached; faces and actions are hidden
func Project(v region.View, o *region.DataObject) any {
	if o.Type != region.TypeVatom {
		return nil
	}
	vt := Decode(o)

	v.Each(func(other *region.DataObject) bool {
		switch other.Type {
		case region.TypeFace:
			if f := DecodeFace(other); f.Template == vt.Template {
				vt.Faces = append(vt.Faces, f)
			}
		case region.TypeAction:
			if a := DecodeAction(other); a.Template == vt.Template {
				vt.Actions = append(vt.Actions, a)
			}
		}
		return true
	})
	sort.Slice(vt.Faces, func(i, j int) bool { return vt.Faces[i].ID < vt.Faces[j].ID })
	sort.Slice(vt.Actions, func(i, j int) bool { return vt.Actions[i].Name < vt.Actions[j].Name })
	return vt
}

// Decode builds a Vatom from a vatom object without faces or actions
func Decode(o *region.DataObject) *Vatom {
	d := o.Data()
	vt := &Vatom{
		ID:                o.ID,
		ParentID:          d.String(PathParentID),
		Owner:             d.String(PathOwner),
		Template:          d.String(PathTemplate),
		TemplateVariation: d.String(PathTemplateVariation),
		Title:             d.String(PathTitle),
		Description:       d.String(PathDescription),
		Category:          d.String(PathCategory),
		Dropped:           d.Bool(PathDropped),
		Transferable:      d.Bool(PathTransferable),
		Acquirable:        d.Bool(PathAcquirable),
		InContract:        d.Bool(PathInContract),
		Sync:              d.Int(PathSync),
		WhenCreated:       parseTime(d.String(PathWhenCreated)),
		WhenModified:      parseTime(d.String(PathWhenModified)),
	}
	if private, ok := d.Lookup(PathPrivate); ok {
		vt.Private = private
	}
	if coords, ok := d.Lookup(PathCoordinates); ok {
		if items := coords.Items(); len(items) == 2 {
			lon, lonOK := items[0].AsFloat()
			lat, latOK := items[1].AsFloat()
			if lonOK && latOK {
				vt.Position = &types.Coordinate{Lat: lat, Lon: lon}
			}
		}
	}
	return vt
}

// DecodeFace builds a Face from a face object
func DecodeFace(o *region.DataObject) *Face {
	d := o.Data()
	f := &Face{
		ID:         o.ID,
		Template:   d.String("template"),
		DisplayURL: d.String("properties.display_url"),
		ViewMode:   d.String("properties.constraints.view_mode"),
		Platform:   d.String("properties.constraints.platform"),
		Data:       d,
	}
	if res, ok := d.Lookup("properties.resources"); ok {
		for _, item := range res.Items() {
			if s, ok := item.AsString(); ok {
				f.Resources = append(f.Resources, s)
			}
		}
	}
	return f
}

// DecodeAction builds an Action from an action object
func DecodeAction(o *region.DataObject) *Action {
	return &Action{Name: o.ID, Template: ActionTemplate(o.ID), Data: o.Data()}
}

// ActionTemplate extracts the template id from a full action name
func ActionTemplate(name string) string {
	template, _, _ := strings.Cut(name, actionSeparator)
	return template
}

// TemplateOf returns the template id of any vatom, face or action object
func TemplateOf(o *region.DataObject) string {
	switch o.Type {
	case region.TypeVatom:
		return o.Data().String(PathTemplate)
	case region.TypeFace:
		return o.Data().String("template")
	case region.TypeAction:
		return ActionTemplate(o.ID)
	}
	return ""
}

// ParentOf returns the parent id of a vatom object
func ParentOf(o *region.DataObject) string {
	if o.Type != region.TypeVatom {
		return ""
	}
	return o.Data().String(PathParentID)
}

// Related returns the vatoms whose projection embeds face or action o
func Related(v region.View, o *region.DataObject) []string {
	if o.Type != region.TypeFace && o.Type != region.TypeAction {
		return nil
	}
	template := TemplateOf(o)
	if template == "" {
		return nil
	}

	var ids []string
	v.Each(func(other *region.DataObject) bool {
		if other.Type == region.TypeVatom && TemplateOf(other) == template {
			ids = append(ids, other.ID)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
