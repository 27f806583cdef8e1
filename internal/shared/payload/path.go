package payload

import "strings"

// SplitPath splits a dotted key path ("vAtom::vAtomType.parent_id")
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get walks nested objects along path
func (v Value) Get(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Field(key)
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

// Lookup is Get with a dotted path
func (v Value) Lookup(path string) (Value, bool) {
	return v.Get(SplitPath(path)...)
}

// String returns the string at path, or "" when missing or not a string
func (v Value) String(path string) string {
	f, _ := v.Lookup(path)
	s, _ := f.AsString()
	return s
}

// Float returns the number at path, or 0
func (v Value) Float(path string) float64 {
	f, _ := v.Lookup(path)
	n, _ := f.AsFloat()
	return n
}

// Int returns the number at path truncated to int64, or 0
func (v Value) Int(path string) int64 {
	f, _ := v.Lookup(path)
	n, _ := f.AsInt()
	return n
}

// Bool returns the boolean at path, or false
func (v Value) Bool(path string) bool {
	f, _ := v.Lookup(path)
	b, _ := f.AsBool()
	return b
}

// Has reports whether path resolves to a field
func (v Value) Has(path string) bool {
	_, ok := v.Lookup(path)
	return ok
}

// Set returns a copy of v with value stored at path. Missing or non-object
// intermediate nodes are replaced by objects.
func (v Value) Set(path []string, value Value) Value {
	if len(path) == 0 {
		return value
	}
	fields := v.Fields()
	if fields == nil {
		fields = map[string]Value{}
	}
	child, _ := v.Field(path[0])
	fields[path[0]] = child.Set(path[1:], value)
	return Value{kind: KindObject, obj: fields}
}

// SetPath is Set with a dotted path
func (v Value) SetPath(path string, value Value) Value {
	return v.Set(SplitPath(path), value)
}

// Delete returns a copy of v without the field at path
func (v Value) Delete(path []string) Value {
	if len(path) == 0 || v.kind != KindObject {
		return v
	}
	child, ok := v.obj[path[0]]
	if !ok {
		return v
	}
	fields := v.Fields()
	if len(path) == 1 {
		delete(fields, path[0])
	} else {
		fields[path[0]] = child.Delete(path[1:])
	}
	return Value{kind: KindObject, obj: fields}
}

// Merge deep-merges patch into v. Where both sides hold an object the merge
// recurses, otherwise the patch value replaces the original.
func (v Value) Merge(patch Value) Value {
	if v.kind != KindObject || patch.kind != KindObject {
		return patch
	}
	fields := v.Fields()
	for k, pv := range patch.obj {
		if old, ok := fields[k]; ok {
			fields[k] = old.Merge(pv)
		} else {
			fields[k] = pv
		}
	}
	return Value{kind: KindObject, obj: fields}
}
