// Package blockvtest provides an in-memory blockv.API for tests.
package blockvtest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/vatomsync/internal/domain/blockv"
	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Vatom describes a server-side vatom
type Vatom struct {
	ID       string
	Template string
	Parent   string
	Owner    string
	Sync     uint64
	Dropped  bool
	Lat, Lon float64
	Extra    map[string]any
}

// Payload renders the vatom the way the platform returns it
func (v Vatom) Payload() payload.Value {
	parent := v.Parent
	if parent == "" {
		parent = vatom.RootParentID
	}
	props := map[string]any{
		"template":  v.Template,
		"parent_id": parent,
		"owner":     v.Owner,
		"dropped":   v.Dropped,
		"geo_pos":   map[string]any{"coordinates": []any{v.Lon, v.Lat}},
	}
	body := map[string]any{
		"id":               v.ID,
		"sync":             float64(v.Sync),
		"vAtom::vAtomType": props,
	}
	for k, val := range v.Extra {
		body[k] = val
	}
	return payload.MustFromAny(body)
}

// Object returns the vatom as a data object
func (v Vatom) Object() *region.DataObject {
	return region.NewObject(v.ID, region.TypeVatom, v.Payload())
}

var _ blockv.API = (*API)(nil)

// API is a scripted, concurrency-safe blockv.API
type API struct {
	mu sync.Mutex

	hash    string
	vatoms  map[string]Vatom
	faces   []*region.DataObject
	actions []*region.DataObject

	faceChanges   []blockv.Change
	actionChanges []blockv.Change

	errs  map[string]error
	calls map[string]int
	gets  [][]string
	since []time.Time
	pages []int
}

// New creates an empty fake
func New() *API {
	return &API{
		vatoms: make(map[string]Vatom),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetHash sets the inventory hash
func (a *API) SetHash(hash string) {
	a.mu.Lock()
	a.hash = hash
	a.mu.Unlock()
}

// Put adds or replaces server-side vatoms
func (a *API) Put(vs ...Vatom) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range vs {
		a.vatoms[v.ID] = v
	}
}

// Delete removes server-side vatoms
func (a *API) Delete(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		delete(a.vatoms, id)
	}
}

// AddFace adds a face returned alongside vatoms of its template
func (a *API) AddFace(id, template string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faces = append(a.faces, region.NewObject(id, region.TypeFace, payload.MustFromAny(map[string]any{
		"id":       id,
		"template": template,
	})))
}

// SetFaceChanges scripts the face changeset
func (a *API) SetFaceChanges(changes ...blockv.Change) {
	a.mu.Lock()
	a.faceChanges = changes
	a.mu.Unlock()
}

// SetActionChanges scripts the action changeset
func (a *API) SetActionChanges(changes ...blockv.Change) {
	a.mu.Lock()
	a.actionChanges = changes
	a.mu.Unlock()
}

// Fail makes the named call return err; nil clears it
func (a *API) Fail(call string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.errs, call)
		return
	}
	a.errs[call] = err
}

// Calls returns how often the named call was made
func (a *API) Calls(call string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[call]
}

// Gets returns the id lists passed to GetVatoms
func (a *API) Gets() [][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]string(nil), a.gets...)
}

// Since returns the watermarks passed to FaceChanges
func (a *API) Since() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.since...)
}

// Pages returns the page numbers requested from InventoryPage
func (a *API) Pages() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]int(nil), a.pages...)
	sort.Ints(out)
	return out
}

func (a *API) begin(call string) error {
	a.calls[call]++
	return a.errs[call]
}

func (a *API) InventoryHash(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("hash"); err != nil {
		return "", err
	}
	return a.hash, nil
}

func (a *API) InventoryIndex(ctx context.Context, cursor string, limit int) (blockv.IndexPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("index"); err != nil {
		return blockv.IndexPage{}, err
	}

	ids := a.sortedIDs()
	start, _ := strconv.Atoi(cursor)
	start = min(max(start, 0), len(ids))
	end := min(start+limit, len(ids))
	var page blockv.IndexPage
	for _, id := range ids[start:end] {
		page.Entries = append(page.Entries, blockv.IndexEntry{ID: id, Sync: a.vatoms[id].Sync})
	}
	if end < len(ids) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (a *API) GetVatoms(ctx context.Context, ids []string) (blockv.Objects, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("get"); err != nil {
		return blockv.Objects{}, err
	}
	a.gets = append(a.gets, append([]string(nil), ids...))

	var out blockv.Objects
	for _, id := range ids {
		if v, ok := a.vatoms[id]; ok {
			out.Vatoms = append(out.Vatoms, v.Object())
		}
	}
	out.Faces = a.facesFor(out.Vatoms)
	return out, nil
}

func (a *API) InventoryPage(ctx context.Context, parentID string, page, limit int) (blockv.Objects, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("page"); err != nil {
		return blockv.Objects{}, err
	}
	a.pages = append(a.pages, page)

	var ids []string
	for _, id := range a.sortedIDs() {
		v := a.vatoms[id]
		if parentID == blockv.ParentAny || parentOrRoot(v.Parent) == parentID {
			ids = append(ids, id)
		}
	}

	start := (page - 1) * limit
	if start >= len(ids) || start < 0 {
		return blockv.Objects{}, nil
	}
	end := min(start+limit, len(ids))

	var out blockv.Objects
	for _, id := range ids[start:end] {
		out.Vatoms = append(out.Vatoms, a.vatoms[id].Object())
	}
	out.Faces = a.facesFor(out.Vatoms)
	return out, nil
}

func (a *API) GeoDiscover(ctx context.Context, box types.BoundingBox) (blockv.Objects, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("geo"); err != nil {
		return blockv.Objects{}, err
	}

	var out blockv.Objects
	for _, id := range a.sortedIDs() {
		v := a.vatoms[id]
		if v.Dropped && box.Contains(types.Coordinate{Lat: v.Lat, Lon: v.Lon}) {
			out.Vatoms = append(out.Vatoms, v.Object())
		}
	}
	out.Faces = a.facesFor(out.Vatoms)
	return out, nil
}

func (a *API) FaceChanges(ctx context.Context, templates []string, since time.Time) ([]blockv.Change, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("face_changes"); err != nil {
		return nil, err
	}
	a.since = append(a.since, since)
	return filterChanges(a.faceChanges, templates), nil
}

func (a *API) ActionChanges(ctx context.Context, templates []string, since time.Time) ([]blockv.Change, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("action_changes"); err != nil {
		return nil, err
	}
	return filterChanges(a.actionChanges, templates), nil
}

func (a *API) sortedIDs() []string {
	ids := make([]string, 0, len(a.vatoms))
	for id := range a.vatoms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *API) facesFor(vatoms []*region.DataObject) []*region.DataObject {
	templates := make(map[string]bool)
	for _, v := range vatoms {
		templates[vatom.TemplateOf(v)] = true
	}
	var out []*region.DataObject
	for _, f := range a.faces {
		if templates[vatom.TemplateOf(f)] {
			out = append(out, f.Clone())
		}
	}
	return out
}

func filterChanges(changes []blockv.Change, templates []string) []blockv.Change {
	want := make(map[string]bool, len(templates))
	for _, t := range templates {
		want[t] = true
	}
	var out []blockv.Change
	for _, c := range changes {
		if want[c.Template] {
			out = append(out, c)
		}
	}
	return out
}

func parentOrRoot(parent string) string {
	if parent == "" {
		return vatom.RootParentID
	}
	return parent
}
