package docstore

import "time"

// Typed field accessors. The store never raises for missing optional fields;
// these return the type's zero value (or the supplied default) instead so
// callers stay free of type-assertion noise.

// Str returns doc[field] as a string, or "" when absent or not a string.
func Str(doc Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

// StrOr returns doc[field] as a string, or def when absent or empty.
func StrOr(doc Document, field, def string) string {
	if s := Str(doc, field); s != "" {
		return s
	}
	return def
}

// F64 returns doc[field] widened to float64, or 0 when absent or non-numeric.
func F64(doc Document, field string) float64 {
	v, _ := toFloat(doc[field])
	return v
}

// Int returns doc[field] as an int, truncating floats; 0 when absent.
func Int(doc Document, field string) int {
	return int(F64(doc, field))
}

// Bool returns doc[field] as a bool, or false when absent.
func Bool(doc Document, field string) bool {
	b, _ := doc[field].(bool)
	return b
}

// BoolOr returns doc[field] as a bool, or def when the field is absent.
func BoolOr(doc Document, field string, def bool) bool {
	if v, ok := doc[field]; ok {
		b, _ := v.(bool)
		return b
	}
	return def
}

// Time returns doc[field] as a time.Time and whether it was one.
func Time(doc Document, field string) (time.Time, bool) {
	t, ok := doc[field].(time.Time)
	return t, ok
}

// StrSlice returns doc[field] as a slice of strings, tolerating both the
// canonical []any form and a raw []string.
func StrSlice(doc Document, field string) []string {
	switch v := doc[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// DocSlice returns doc[field] as a slice of nested documents.
func DocSlice(doc Document, field string) []Document {
	raw, _ := doc[field].([]any)
	out := make([]Document, 0, len(raw))
	for _, e := range raw {
		if d, ok := e.(map[string]any); ok {
			out = append(out, d)
		}
	}
	return out
}
