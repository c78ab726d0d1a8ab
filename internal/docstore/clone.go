package docstore

import (
	"reflect"
	"time"
)

// cloneDocument deep-copies a document so callers can never mutate stored
// state through a returned value. Sequences and nested maps are normalized to
// their canonical []any / map[string]any forms on the way in and out.
func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case time.Time:
		return val
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	}
	// Uncommon shapes (typed slices, typed maps) are normalized via
	// reflection so every stored sequence is []any and every stored
	// mapping is map[string]any.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = cloneValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if k, ok := iter.Key().Interface().(string); ok {
				out[k] = cloneValue(iter.Value().Interface())
			}
		}
		return out
	}
	return v
}
