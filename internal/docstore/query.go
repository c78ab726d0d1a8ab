package docstore

import (
	"reflect"
	"strings"
	"time"
)

// Query is the wire shape of a filter: field name to either a literal
// (equality) or an operator object such as {"$gte": v}. Multiple fields are
// an implicit AND. A nil Query matches unconditionally.
type Query = map[string]any

// Convenience constructors for operator objects.

func Gte(v any) map[string]any { return map[string]any{"$gte": v} }
func Lte(v any) map[string]any { return map[string]any{"$lte": v} }
func Gt(v any) map[string]any  { return map[string]any{"$gt": v} }
func Lt(v any) map[string]any  { return map[string]any{"$lt": v} }
func Ne(v any) map[string]any  { return map[string]any{"$ne": v} }
func In(vs ...any) map[string]any {
	return map[string]any{"$in": vs}
}

type condOp int

const (
	opEq condOp = iota
	opGte
	opLte
	opGt
	opLt
	opNe
	opIn
)

type condition struct {
	field string
	op    condOp
	value any
}

// compiledQuery is the parsed form of a Query: a conjunction of conditions.
type compiledQuery []condition

// compileQuery parses the wire shape once so matching never re-inspects the
// operator maps. Unknown $-operators are dropped, matching the dialect's
// lenient reference behavior: a field whose object holds only unknown
// operators constrains nothing.
func compileQuery(q Query) compiledQuery {
	if len(q) == 0 {
		return nil
	}
	var cq compiledQuery
	for field, val := range q {
		ops, isOps := operatorObject(val)
		if !isOps {
			cq = append(cq, condition{field: field, op: opEq, value: val})
			continue
		}
		for op, opVal := range ops {
			switch op {
			case "$gte":
				cq = append(cq, condition{field, opGte, opVal})
			case "$lte":
				cq = append(cq, condition{field, opLte, opVal})
			case "$gt":
				cq = append(cq, condition{field, opGt, opVal})
			case "$lt":
				cq = append(cq, condition{field, opLt, opVal})
			case "$ne":
				cq = append(cq, condition{field, opNe, opVal})
			case "$in":
				cq = append(cq, condition{field, opIn, opVal})
			}
		}
	}
	return cq
}

// operatorObject reports whether val is an operator object: a map whose keys
// all start with "$". A plain nested map is an equality literal.
func operatorObject(val any) (map[string]any, bool) {
	m, ok := val.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func (cq compiledQuery) matches(doc Document) bool {
	for _, c := range cq {
		docVal, present := doc[c.field]
		switch c.op {
		case opEq:
			if !valuesEqual(docVal, c.value) {
				return false
			}
		case opGte:
			cmp, ok := compareValues(docVal, c.value)
			if !present || !ok || cmp < 0 {
				return false
			}
		case opLte:
			cmp, ok := compareValues(docVal, c.value)
			if !present || !ok || cmp > 0 {
				return false
			}
		case opGt:
			cmp, ok := compareValues(docVal, c.value)
			if !present || !ok || cmp <= 0 {
				return false
			}
		case opLt:
			cmp, ok := compareValues(docVal, c.value)
			if !present || !ok || cmp >= 0 {
				return false
			}
		case opNe:
			if valuesEqual(docVal, c.value) {
				return false
			}
		case opIn:
			if !memberOf(docVal, c.value) {
				return false
			}
		}
	}
	return true
}

func memberOf(docVal, set any) bool {
	rv := reflect.ValueOf(set)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if valuesEqual(docVal, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// valuesEqual compares two document values for equality, treating all numeric
// types as one domain so an int document field matches a float64 query value.
func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values when they share a comparable domain:
// numbers, strings, times, or bools. The second return is false when the pair
// cannot be ordered, which callers treat as a failed match.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

// toFloat widens any numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
