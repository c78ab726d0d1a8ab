package docstore

import "sort"

// Ascending and Descending are the sort directions of the dialect.
const (
	Ascending  = 1
	Descending = -1
)

// Cursor is the lazy result of a Find. Sort and Limit chain and are resolved
// only when the cursor is materialized with All or Count. Documents missing
// the sort field order after all documents that have it, regardless of
// direction, so unset-timestamp documents never disturb a sort.
type Cursor struct {
	docs      []Document
	sortField string
	sortDir   int
	limitN    int
	hasLimit  bool
}

// Sort sets a single-field sort; direction is Ascending or Descending.
func (c *Cursor) Sort(field string, direction int) *Cursor {
	c.sortField = field
	c.sortDir = direction
	return c
}

// Limit truncates the resolved result to the first n documents. A limit of
// zero or less means no limit.
func (c *Cursor) Limit(n int) *Cursor {
	c.limitN = n
	c.hasLimit = true
	return c
}

// All resolves the cursor and returns the documents.
func (c *Cursor) All() []Document {
	docs := make([]Document, len(c.docs))
	copy(docs, c.docs)
	if c.sortField != "" {
		sortDocuments(docs, c.sortField, c.sortDir)
	}
	if c.hasLimit && c.limitN > 0 && len(docs) > c.limitN {
		docs = docs[:c.limitN]
	}
	return docs
}

// Count resolves the cursor and returns the number of documents.
func (c *Cursor) Count() int {
	return len(c.All())
}

// First resolves the cursor and returns the first document, or nil.
func (c *Cursor) First() Document {
	docs := c.All()
	if len(docs) == 0 {
		return nil
	}
	return docs[0]
}

func sortDocuments(docs []Document, field string, direction int) {
	desc := direction == Descending
	sort.SliceStable(docs, func(i, j int) bool {
		vi, oki := docs[i][field]
		vj, okj := docs[j][field]
		if oki != okj {
			// Present sorts before absent in either direction.
			return oki
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
}
