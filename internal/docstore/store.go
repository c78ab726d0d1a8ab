// Package docstore implements the in-memory document store backing the
// platform. It speaks a small subset of the MongoDB dialect (query operators,
// update operators, aggregation stages) over schemaless documents held in
// named, insertion-ordered collections. Nothing is persisted; all state lives
// for the process lifetime.
package docstore

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// IDField is the document identifier field. It is assigned at insertion when
// absent and immutable afterwards.
const IDField = "_id"

// Document is a single schemaless record. Values are scalars, nested
// map[string]any, or []any trees (JSON-shaped), plus time.Time.
type Document = map[string]any

// Store owns all collections behind a single process-wide mutex. Every
// operation holds the lock for its own duration only, so concurrent
// multi-step sequences can interleave at the document level.
type Store struct {
	mu          sync.Mutex
	collections map[string][]Document
	order       []string
}

// New creates an empty store. Callers hold a reference and pass it to
// components explicitly; there is no package-level singleton.
func New() *Store {
	return &Store{collections: make(map[string][]Document)}
}

// CreateCollection ensures the named collection exists.
func (s *Store) CreateCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(name)
}

// CollectionNames returns all collection names in creation order.
func (s *Store) CollectionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Collection returns a handle for the named collection, creating it lazily.
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

// C is shorthand for Collection.
func (s *Store) C(name string) *Collection { return s.Collection(name) }

func (s *Store) ensure(name string) []Document {
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = []Document{}
		s.order = append(s.order, name)
	}
	return s.collections[name]
}

// Collection is a named, ordered sequence of documents. Handles are cheap;
// all state lives in the Store.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Find returns a lazy cursor over deep copies of all documents matching
// query. A nil query matches everything.
func (c *Collection) Find(query Query) *Cursor {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var out []Document
	for _, doc := range c.store.collections[c.name] {
		if cq.matches(doc) {
			out = append(out, cloneDocument(doc))
		}
	}
	return &Cursor{docs: out}
}

// FindOne returns a deep copy of the first matching document in insertion
// order, or nil when nothing matches.
func (c *Collection) FindOne(query Query) Document {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, doc := range c.store.collections[c.name] {
		if cq.matches(doc) {
			return cloneDocument(doc)
		}
	}
	return nil
}

// InsertOne appends a copy of doc to the collection, assigning a fresh _id
// when the document has none, and returns the identifier.
func (c *Collection) InsertOne(doc Document) string {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.insertLocked(doc)
}

// InsertMany inserts all docs in order and returns their identifiers.
func (c *Collection) InsertMany(docs []Document) []string {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, c.insertLocked(doc))
	}
	return ids
}

func (c *Collection) insertLocked(doc Document) string {
	stored := cloneDocument(doc)
	id, ok := stored[IDField].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		stored[IDField] = id
	}
	c.store.ensure(c.name)
	c.store.collections[c.name] = append(c.store.collections[c.name], stored)
	return id
}

// UpdateOne applies update to the first matching document in place and
// reports whether a document matched.
func (c *Collection) UpdateOne(query Query, update Update) bool {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, doc := range c.store.collections[c.name] {
		if cq.matches(doc) {
			applyUpdate(doc, update)
			return true
		}
	}
	return false
}

// UpdateMany applies update to every matching document and returns the count.
func (c *Collection) UpdateMany(query Query, update Update) int {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	count := 0
	for _, doc := range c.store.collections[c.name] {
		if cq.matches(doc) {
			applyUpdate(doc, update)
			count++
		}
	}
	return count
}

// DeleteOne removes the first matching document and reports whether one was
// removed.
func (c *Collection) DeleteOne(query Query) bool {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.collections[c.name]
	for i, doc := range docs {
		if cq.matches(doc) {
			c.store.collections[c.name] = append(docs[:i], docs[i+1:]...)
			return true
		}
	}
	return false
}

// CountDocuments returns the number of documents matching query.
func (c *Collection) CountDocuments(query Query) int {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	count := 0
	for _, doc := range c.store.collections[c.name] {
		if cq.matches(doc) {
			count++
		}
	}
	return count
}

// Distinct returns the distinct values of field across matching documents,
// excluding documents where the field is absent or nil. Order follows first
// occurrence.
func (c *Collection) Distinct(field string, query Query) []any {
	cq := compileQuery(query)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	seen := make(map[any]bool)
	var out []any
	for _, doc := range c.store.collections[c.name] {
		if !cq.matches(doc) {
			continue
		}
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		k := mapKey(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, cloneValue(v))
		}
	}
	return out
}

// mapKey makes a field value safe to use as a Go map key. Slice and map
// values are not hashable and fall back to their printed form.
func mapKey(v any) any {
	if v == nil {
		return nil
	}
	if !reflect.TypeOf(v).Comparable() {
		return fmt.Sprintf("%v", v)
	}
	return v
}

// CreateIndex is accepted for dialect compatibility but maintains no physical
// index; all reads are linear scans.
func (c *Collection) CreateIndex(fields ...string) {}
