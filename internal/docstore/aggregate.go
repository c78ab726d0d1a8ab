package docstore

import (
	"sort"
	"strings"
)

// Pipeline is an ordered list of aggregation stages. Each stage object holds
// exactly one of "$match", "$group", "$sort", "$limit".
type Pipeline = []map[string]any

// Aggregate applies the pipeline stages in order over a working copy of the
// collection and returns the resulting documents. Supported stages:
//
//	$match: filter with find semantics
//	$group: _id is a literal key or a "$field" reference; accumulators are
//	        {"$sum": operand} where operand is 1, a constant, or "$field"
//	$sort:  single-field sort, 1 ascending / -1 descending
//	$limit: truncate to the first n documents
func (c *Collection) Aggregate(pipeline Pipeline) []Document {
	c.store.mu.Lock()
	stored := c.store.collections[c.name]
	docs := make([]Document, 0, len(stored))
	for _, d := range stored {
		docs = append(docs, cloneDocument(d))
	}
	c.store.mu.Unlock()

	for _, stage := range pipeline {
		if query, ok := stage["$match"]; ok {
			docs = matchStage(docs, query)
		} else if spec, ok := stage["$group"].(map[string]any); ok {
			docs = groupStage(docs, spec)
		} else if spec, ok := stage["$sort"].(map[string]any); ok {
			docs = sortStage(docs, spec)
		} else if n, ok := stage["$limit"]; ok {
			docs = limitStage(docs, n)
		}
	}
	return docs
}

func matchStage(docs []Document, query any) []Document {
	q, _ := query.(map[string]any)
	cq := compileQuery(q)
	out := docs[:0]
	for _, d := range docs {
		if cq.matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// groupStage buckets documents by the grouping key and applies $sum
// accumulators. Groups are emitted in first-seen order with _id set to the
// key.
func groupStage(docs []Document, spec map[string]any) []Document {
	groupField, literalKey := groupKey(spec["_id"])

	groups := make(map[any]Document)
	var order []any
	for _, d := range docs {
		id := literalKey
		if groupField != "" {
			id = d[groupField]
		}
		key := mapKey(id)
		g, ok := groups[key]
		if !ok {
			g = Document{IDField: id}
			for name := range spec {
				if name != IDField {
					g[name] = float64(0)
				}
			}
			groups[key] = g
			order = append(order, key)
		}
		for name, acc := range spec {
			if name == IDField {
				continue
			}
			accOps, ok := acc.(map[string]any)
			if !ok {
				continue
			}
			if operand, ok := accOps["$sum"]; ok {
				cur, _ := toFloat(g[name])
				g[name] = cur + sumOperand(d, operand)
			}
		}
	}

	out := make([]Document, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

// groupKey splits the _id spec into a field reference ("$field") or a
// literal grouping key.
func groupKey(id any) (field string, literal any) {
	if s, ok := id.(string); ok && strings.HasPrefix(s, "$") {
		return s[1:], nil
	}
	return "", id
}

// sumOperand resolves a $sum operand against a document: the literal 1
// counts, any other number adds that constant, and a "$field" reference adds
// the field's numeric value, defaulting to 0.
func sumOperand(d Document, operand any) float64 {
	if s, ok := operand.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := toFloat(d[s[1:]])
		return v
	}
	v, _ := toFloat(operand)
	return v
}

// sortStage orders documents by a single field. Unlike the cursor sort, a
// document missing the field compares as the minimal value, so it leads an
// ascending sort and trails a descending one.
func sortStage(docs []Document, spec map[string]any) []Document {
	for field, dir := range spec {
		desc := false
		if f, ok := toFloat(dir); ok && f == -1 {
			desc = true
		}
		sort.SliceStable(docs, func(i, j int) bool {
			vi, oki := docs[i][field]
			vj, okj := docs[j][field]
			if oki != okj {
				if desc {
					return oki
				}
				return okj
			}
			if !oki {
				return false
			}
			cmp, ok := compareValues(vi, vj)
			if !ok {
				return false
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
		break
	}
	return docs
}

func limitStage(docs []Document, n any) []Document {
	limit, ok := toFloat(n)
	if !ok {
		return docs
	}
	if l := int(limit); l >= 0 && len(docs) > l {
		return docs[:l]
	}
	return docs
}
