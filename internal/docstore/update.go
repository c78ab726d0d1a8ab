package docstore

// Update is the wire shape of a mutation: {"$set": {...}}, {"$inc": {...}},
// {"$push": {...}}. Operators may be combined; they apply in that order.
type Update = map[string]any

// Convenience constructors for single-operator updates.

func Set(fields map[string]any) Update  { return Update{"$set": fields} }
func Inc(fields map[string]any) Update  { return Update{"$inc": fields} }
func Push(fields map[string]any) Update { return Update{"$push": fields} }

// applyUpdate mutates doc in place. The identifier field is immutable:
// attempts to $set it are dropped. $inc on an absent or non-numeric field
// treats the prior value as 0. $push creates the sequence when absent.
// Caller holds the store lock.
func applyUpdate(doc Document, update Update) {
	if set, ok := update["$set"].(map[string]any); ok {
		for k, v := range set {
			if k == IDField {
				continue
			}
			doc[k] = cloneValue(v)
		}
	}
	if inc, ok := update["$inc"].(map[string]any); ok {
		for k, v := range inc {
			delta, _ := toFloat(v)
			base, _ := toFloat(doc[k])
			doc[k] = base + delta
		}
	}
	if push, ok := update["$push"].(map[string]any); ok {
		for k, v := range push {
			seq, _ := doc[k].([]any)
			doc[k] = append(seq, cloneValue(v))
		}
	}
}
