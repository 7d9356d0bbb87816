package formdata

import (
	"maps"
	"slices"
)

// Data is a flattened form.
type Data map[Key]any

// Keys returns all keys in a stable order.
func (d Data) Keys() []Key {
	keys := slices.Collect(maps.Keys(d))
	sortKeys(keys)
	return keys
}

// Clone returns a copy of d. Extras sub-mappings are copied as well so that
// the copy can be rewritten without touching the original.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		if ex, ok := v.(map[string]any); ok {
			v = maps.Clone(ex)
		}
		out[k] = v
	}
	return out
}

// Indexes returns the distinct object indexes present for collection,
// in ascending order.
func (d Data) Indexes(collection string) []int {
	seen := make(map[int]struct{})
	for k := range d {
		if !k.IsScalar() && k.Collection == collection {
			seen[k.Index] = struct{}{}
		}
	}
	out := slices.Collect(maps.Keys(seen))
	slices.Sort(out)
	return out
}

// NextIndex returns the first index after every object already present in
// collection.
func (d Data) NextIndex(collection string) int {
	n := 0
	for k := range d {
		if !k.IsScalar() && k.Collection == collection && k.Index >= n {
			n = k.Index + 1
		}
	}
	return n
}

// Extras returns the extras sub-mapping for one object, or nil.
func (d Data) Extras(collection string, index int) map[string]any {
	ex, _ := d[Path(collection, index, ExtrasField)].(map[string]any)
	return ex
}

// Field looks up field of one object. A value stored directly under the
// path key wins over one carried in the object's extras.
func (d Data) Field(collection string, index int, field string) (any, bool) {
	if v, ok := d[Path(collection, index, field)]; ok {
		return v, true
	}
	if ex := d.Extras(collection, index); ex != nil {
		v, ok := ex[field]
		return v, ok
	}
	return nil, false
}

// DeleteIndex removes every key of one object.
func (d Data) DeleteIndex(collection string, index int) {
	for k := range d {
		if !k.IsScalar() && k.Collection == collection && k.Index == index {
			delete(d, k)
		}
	}
}

// String returns the value at k when it is a string.
func (d Data) String(k Key) (string, bool) {
	return stringValue(d[k])
}

// stringValue normalises the string-ish values a form may carry.
func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	default:
		return "", false
	}
}

// OptionalString converts a stored value into a nullable string. Empty
// strings and nil are both treated as absent.
func OptionalString(v any) *string {
	s, ok := stringValue(v)
	if !ok || s == "" {
		return nil
	}
	return &s
}
