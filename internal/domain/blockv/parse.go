package blockv

import (
	"fmt"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/vatom"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// ParseError reports a platform payload that does not have the expected
// shape
type ParseError struct {
	Kind  string
	Index int
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s payload: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("malformed %s payload at %d: %s %s", e.Kind, e.Index, e.Field, e.Msg)
}

// ParseObjects splits a {vatoms, faces, actions} payload into data objects.
// Missing sections are treated as empty; entries without an identity fail.
func ParseObjects(v payload.Value) (Objects, error) {
	if !v.IsObject() {
		return Objects{}, &ParseError{Kind: "objects", Msg: "expected object, got " + v.Kind().String()}
	}

	var out Objects
	var err error
	if out.Vatoms, err = parseList(v, "vatoms", region.TypeVatom, "id"); err != nil {
		return Objects{}, err
	}
	if out.Faces, err = parseList(v, "faces", region.TypeFace, "id"); err != nil {
		return Objects{}, err
	}
	if out.Actions, err = parseList(v, "actions", region.TypeAction, "name"); err != nil {
		return Objects{}, err
	}
	return out, nil
}

func parseList(v payload.Value, field, typ, idField string) ([]*region.DataObject, error) {
	list, ok := v.Field(field)
	if !ok || list.IsNull() {
		return nil, nil
	}
	if list.Kind() != payload.KindArray {
		return nil, &ParseError{Kind: typ, Msg: field + " is " + list.Kind().String()}
	}

	items := list.Items()
	out := make([]*region.DataObject, 0, len(items))
	for i, item := range items {
		obj, err := parseObject(item, typ, idField, i)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func parseObject(item payload.Value, typ, idField string, index int) (*region.DataObject, error) {
	if !item.IsObject() {
		return nil, &ParseError{Kind: typ, Index: index, Field: idField, Msg: "entry is " + item.Kind().String()}
	}
	id := item.String(idField)
	if id == "" {
		return nil, &ParseError{Kind: typ, Index: index, Field: idField, Msg: "is missing"}
	}
	if typ == region.TypeVatom && !item.Has(vatom.PathProperties) {
		return nil, &ParseError{Kind: typ, Index: index, Field: vatom.PathProperties, Msg: "is missing"}
	}
	return region.NewObject(id, typ, item), nil
}

// ParseVatom parses a single vatom payload
func ParseVatom(item payload.Value) (*region.DataObject, error) {
	return parseObject(item, region.TypeVatom, "id", 0)
}

// ParseIndex parses an inventory index page
func ParseIndex(v payload.Value) (IndexPage, error) {
	list, ok := v.Field("vatoms")
	if !ok || list.Kind() != payload.KindArray {
		return IndexPage{}, &ParseError{Kind: "index", Msg: "vatoms list is missing"}
	}

	page := IndexPage{Next: v.String("next_token")}
	for i, item := range list.Items() {
		id := item.String("id")
		if id == "" {
			return IndexPage{}, &ParseError{Kind: "index", Index: i, Field: "id", Msg: "is missing"}
		}
		sync, _ := item.Field("sync")
		n, ok := sync.AsInt()
		if !ok || n < 0 {
			return IndexPage{}, &ParseError{Kind: "index", Index: i, Field: "sync", Msg: "is not a sync number"}
		}
		page.Entries = append(page.Entries, IndexEntry{ID: id, Sync: uint64(n)})
	}
	return page, nil
}

// ParseChanges parses a face or action changeset. typ selects the object
// key ("face" or "action") inside each entry.
func ParseChanges(v payload.Value, typ string) ([]Change, error) {
	list, ok := v.Field("changes")
	if !ok || list.IsNull() {
		return nil, nil
	}
	if list.Kind() != payload.KindArray {
		return nil, &ParseError{Kind: typ + " changes", Msg: "changes is " + list.Kind().String()}
	}

	idField := "id"
	if typ == region.TypeAction {
		idField = "name"
	}

	var out []Change
	for i, item := range list.Items() {
		op := normalizeOp(item.String("operation"))
		if op == "" {
			return nil, &ParseError{Kind: typ + " change", Index: i, Field: "operation", Msg: "is unknown"}
		}

		body, hasBody := item.Field(typ)
		id := item.String("id")
		if hasBody && body.IsObject() {
			if bid := body.String(idField); bid != "" {
				id = bid
			}
		}
		if id == "" {
			return nil, &ParseError{Kind: typ + " change", Index: i, Field: idField, Msg: "is missing"}
		}

		c := Change{Op: op, ID: id, Template: item.String("template_id")}
		if op != OpDelete {
			if !hasBody || !body.IsObject() {
				return nil, &ParseError{Kind: typ + " change", Index: i, Field: typ, Msg: "is missing"}
			}
			c.Object = region.NewObject(id, typ, body)
			if c.Template == "" {
				c.Template = vatom.TemplateOf(c.Object)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func normalizeOp(op string) string {
	switch op {
	case "insert", "create":
		return OpCreate
	case "update":
		return OpUpdate
	case "delete", "remove":
		return OpDelete
	}
	return ""
}
