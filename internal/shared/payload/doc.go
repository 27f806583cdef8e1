// Package payload provides the untyped attribute bag carried by cache entries.
//
// Platform objects arrive as arbitrary JSON. Instead of passing
// map[string]interface{} around, the bag is represented as a tagged union
// (Value) with explicit path helpers and a structural deep merge:
//
//	v, _ := payload.Parse([]byte(`{"a":{"x":1,"y":2}}`))
//	patch, _ := payload.Parse([]byte(`{"a":{"y":3}}`))
//	merged := v.Merge(patch) // {"a":{"x":1,"y":3}}
//
// Values are immutable. Set and Merge return new values and never modify
// their receiver, so a Value can be shared between goroutines freely.
package payload
