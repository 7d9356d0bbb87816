// Package formdata implements the flattened representation of submitted
// forms: a single-level mapping from path keys to values that validators and
// converters rewrite in place before the form is rebuilt into nested objects.
package formdata

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ExtrasField is the field name under which values outside an object's
// declared schema are carried.
const ExtrasField = "__extras"

// Key addresses one value in a flattened form. A scalar key names a
// top-level field and has Index -1; a path key addresses Field of the
// Index-th object in the Collection list.
type Key struct {
	Collection string
	Index      int
	Field      string
}

// Scalar returns the key for a top-level field.
func Scalar(name string) Key {
	return Key{Collection: name, Index: -1}
}

// Path returns the key for field of the index-th object of collection.
func Path(collection string, index int, field string) Key {
	return Key{Collection: collection, Index: index, Field: field}
}

// IsScalar reports whether k names a top-level field.
func (k Key) IsScalar() bool {
	return k.Index < 0
}

// String renders the key as dotted path, e.g. "tags.0.name".
func (k Key) String() string {
	if k.IsScalar() {
		return k.Collection
	}
	return k.Collection + "." + strconv.Itoa(k.Index) + "." + k.Field
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Key{}, fmt.Errorf("formdata: empty key")
		}
		return Scalar(parts[0]), nil
	case 3:
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 {
			return Key{}, fmt.Errorf("formdata: bad index in key %q", s)
		}
		return Path(parts[0], idx, parts[2]), nil
	default:
		return Key{}, fmt.Errorf("formdata: malformed key %q", s)
	}
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Collection, b.Collection); c != 0 {
		return c
	}
	if a.Index != b.Index {
		return a.Index - b.Index
	}
	return strings.Compare(a.Field, b.Field)
}

func sortKeys(keys []Key) {
	slices.SortFunc(keys, compareKeys)
}
