package formdata

import (
	"context"
	"slices"
	"strings"
)

// Func validates or converts the value at key. Problems are recorded in
// errs rather than returned so that one pass can report every field.
type Func func(ctx context.Context, key Key, data Data, errs Errors)

// Schema maps field names to the functions run for them, in order. A name
// of the form "collection.*.field" applies to that field of every object in
// the collection.
type Schema map[string][]Func

const eachMarker = ".*."

// Validate runs schema over a copy of data. Fields run in name order; a
// field's chain stops at the first function that records an error for it.
// The returned Errors is shared by every function of the pass.
func Validate(ctx context.Context, schema Schema, data Data) (Data, Errors) {
	out := data.Clone()
	errs := NewErrors()

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, key := range expand(name, out) {
			runChain(ctx, schema[name], key, out, errs)
		}
	}
	return out, errs
}

func expand(name string, d Data) []Key {
	coll, field, ok := strings.Cut(name, eachMarker)
	if !ok {
		return []Key{Scalar(name)}
	}
	indexes := d.Indexes(coll)
	keys := make([]Key, len(indexes))
	for i, idx := range indexes {
		keys[i] = Path(coll, idx, field)
	}
	return keys
}

func runChain(ctx context.Context, chain []Func, key Key, d Data, errs Errors) {
	for _, fn := range chain {
		if ctx.Err() != nil {
			return
		}
		before := len(errs[key])
		// Objects removed by an earlier function are skipped.
		if !key.IsScalar() && !slices.Contains(d.Indexes(key.Collection), key.Index) {
			return
		}
		fn(ctx, key, d, errs)
		if len(errs[key]) > before {
			return
		}
	}
}
