package formdata

import (
	"maps"
	"slices"

	"github.com/starford/taxon/internal/models"
)

// Tags is the collection holding an object's tag list.
const Tags = "tags"

// Flatten converts a nested form into Data. Non-empty lists whose elements
// are all objects become path keys; every other value becomes a scalar key.
func Flatten(form map[string]any) Data {
	out := make(Data, len(form))
	for name, v := range form {
		objs, ok := objectList(v)
		if !ok {
			out[Scalar(name)] = v
			continue
		}
		for i, obj := range objs {
			for field, fv := range obj {
				out[Path(name, i, field)] = fv
			}
		}
	}
	return out
}

func objectList(v any) ([]map[string]any, bool) {
	switch l := v.(type) {
	case []map[string]any:
		return l, len(l) > 0
	case []any:
		if len(l) == 0 {
			return nil, false
		}
		objs := make([]map[string]any, len(l))
		for i, item := range l {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			objs[i] = m
		}
		return objs, true
	default:
		return nil, false
	}
}

// Unflatten rebuilds the nested form. Object indexes are compacted in
// ascending order, so gaps left by removed objects disappear. Extras are
// merged into their object without overriding declared fields. When a
// scalar and a collection share a name the collection wins.
func Unflatten(d Data) map[string]any {
	out := make(map[string]any)
	grouped := make(map[string]map[int]map[string]any)

	for k, v := range d {
		if k.IsScalar() {
			out[k.Collection] = v
			continue
		}
		byIndex, ok := grouped[k.Collection]
		if !ok {
			byIndex = make(map[int]map[string]any)
			grouped[k.Collection] = byIndex
		}
		obj, ok := byIndex[k.Index]
		if !ok {
			obj = make(map[string]any)
			byIndex[k.Index] = obj
		}
		obj[k.Field] = v
	}

	for name, byIndex := range grouped {
		indexes := slices.Collect(maps.Keys(byIndex))
		slices.Sort(indexes)
		list := make([]map[string]any, 0, len(indexes))
		for _, i := range indexes {
			list = append(list, mergeExtras(byIndex[i]))
		}
		out[name] = list
	}
	return out
}

func mergeExtras(obj map[string]any) map[string]any {
	ex, ok := obj[ExtrasField].(map[string]any)
	if !ok {
		return obj
	}
	delete(obj, ExtrasField)
	for f, v := range ex {
		if _, declared := obj[f]; !declared {
			obj[f] = v
		}
	}
	return obj
}

// TagEntries reads the tag list out of d in index order. Objects without a
// name are skipped.
func TagEntries(d Data) []models.TagEntry {
	var out []models.TagEntry
	for _, i := range d.Indexes(Tags) {
		nv, _ := d.Field(Tags, i, "name")
		name, _ := stringValue(nv)
		if name == "" {
			continue
		}
		vid, _ := d.Field(Tags, i, "vocabulary_id")
		dv, _ := d.Field(Tags, i, "display_name")
		display, _ := stringValue(dv)
		out = append(out, models.TagEntry{
			Name:         name,
			VocabularyID: OptionalString(vid),
			DisplayName:  display,
		})
	}
	return out
}

// FlattenTags writes entries as the tag collection of a new Data.
func FlattenTags(entries []models.TagEntry) Data {
	out := make(Data, 2*len(entries))
	for i, e := range entries {
		out[Path(Tags, i, "name")] = e.Name
		if e.VocabularyID != nil {
			out[Path(Tags, i, "vocabulary_id")] = *e.VocabularyID
		} else {
			out[Path(Tags, i, "vocabulary_id")] = nil
		}
		if e.DisplayName != "" {
			out[Path(Tags, i, "display_name")] = e.DisplayName
		}
	}
	return out
}
