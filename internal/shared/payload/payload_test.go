package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		patch    string
		expected string
	}{
		{
			name:     "nested objects merge recursively",
			base:     `{"a":{"x":1,"y":2}}`,
			patch:    `{"a":{"y":3}}`,
			expected: `{"a":{"x":1,"y":3}}`,
		},
		{
			name:     "scalar replaces object",
			base:     `{"a":{"x":1}}`,
			patch:    `{"a":5}`,
			expected: `{"a":5}`,
		},
		{
			name:     "new keys are added",
			base:     `{"a":1}`,
			patch:    `{"b":{"c":true}}`,
			expected: `{"a":1,"b":{"c":true}}`,
		},
		{
			name:     "arrays are replaced, not merged",
			base:     `{"a":[1,2,3]}`,
			patch:    `{"a":[4]}`,
			expected: `{"a":[4]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.base).Merge(mustParse(t, tt.patch))
			assert.True(t, got.Equal(mustParse(t, tt.expected)), "got %v", got.ToAny())
		})
	}
}

func TestMergeDoesNotModifyReceiver(t *testing.T) {
	base := mustParse(t, `{"a":{"x":1}}`)
	_ = base.Merge(mustParse(t, `{"a":{"x":2}}`))
	assert.Equal(t, int64(1), base.Int("a.x"))
}

func TestSetAndLookup(t *testing.T) {
	v := mustParse(t, `{"vAtom::vAtomType":{"parent_id":"."}}`)

	updated := v.SetPath("vAtom::vAtomType.parent_id", String("p1"))
	assert.Equal(t, "p1", updated.String("vAtom::vAtomType.parent_id"))
	assert.Equal(t, ".", v.String("vAtom::vAtomType.parent_id"))

	created := Null().SetPath("a.b.c", Number(4))
	assert.Equal(t, int64(4), created.Int("a.b.c"))
	assert.False(t, created.Has("a.x"))

	removed := created.Delete([]string{"a", "b"})
	assert.False(t, removed.Has("a.b"))
	assert.True(t, removed.Has("a"))
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)

	v, err := FromAny(map[string]any{"n": 3, "list": []any{"a", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int("n"))
	list, _ := v.Lookup("list")
	assert.Equal(t, 2, list.Len())
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, EmptyObject().IsEmpty())
	assert.False(t, mustParse(t, `{"a":1}`).IsEmpty())
	assert.False(t, String("").IsEmpty())
}

func TestJSONRoundTripThroughStruct(t *testing.T) {
	type wrapper struct {
		Type    string `json:"msg_type"`
		Payload Value  `json:"payload"`
	}

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"msg_type":"state_update","payload":{"id":"v1","new_object":{"x":1}}}`), &w))
	assert.Equal(t, "v1", w.Payload.String("id"))

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg_type":"state_update","payload":{"id":"v1","new_object":{"x":1}}}`, string(out))
}
