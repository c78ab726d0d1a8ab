package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsID(t *testing.T) {
	db := New()
	users := db.C("users")

	id := users.InsertOne(Document{"name": "alice"})
	require.NotEmpty(t, id)

	found := users.FindOne(Query{IDField: id})
	require.NotNil(t, found)
	assert.Equal(t, "alice", Str(found, "name"))
	assert.Equal(t, id, Str(found, IDField))
}

func TestInsertKeepsExplicitID(t *testing.T) {
	db := New()
	apps := db.C("apps")

	id := apps.InsertOne(Document{IDField: "app_crm", "name": "CRM"})
	assert.Equal(t, "app_crm", id)
	assert.NotNil(t, apps.FindOne(Query{IDField: "app_crm"}))
}

func TestInsertManyAssignsUniqueIDs(t *testing.T) {
	db := New()
	c := db.C("items")

	ids := c.InsertMany([]Document{{"n": 1}, {"n": 2}, {"n": 3}})
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestFindReturnsDeepCopies(t *testing.T) {
	db := New()
	c := db.C("sessions")
	id := c.InsertOne(Document{
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"x": 1},
	})

	got := c.FindOne(Query{IDField: id})
	got["tags"].([]any)[0] = "mutated"
	got["nested"].(map[string]any)["x"] = 99
	got["new_field"] = true

	fresh := c.FindOne(Query{IDField: id})
	assert.Equal(t, "a", fresh["tags"].([]any)[0])
	assert.Equal(t, 1, fresh["nested"].(map[string]any)["x"])
	assert.NotContains(t, fresh, "new_field")
}

func TestFindPreservesInsertionOrder(t *testing.T) {
	db := New()
	c := db.C("events")
	for i := 0; i < 5; i++ {
		c.InsertOne(Document{"seq": i})
	}

	all := c.Find(nil).All()
	require.Len(t, all, 5)
	for i, d := range all {
		assert.Equal(t, i, Int(d, "seq"))
	}
}

func TestFindOperators(t *testing.T) {
	db := New()
	c := db.C("scores")
	c.InsertMany([]Document{
		{"user": "a", "score": 10},
		{"user": "b", "score": 20},
		{"user": "c", "score": 30},
		{"user": "d"},
	})

	assert.Equal(t, 2, c.Find(Query{"score": Gte(20)}).Count())
	assert.Equal(t, 1, c.Find(Query{"score": Gt(20)}).Count())
	assert.Equal(t, 2, c.Find(Query{"score": Lte(20)}).Count())
	assert.Equal(t, 1, c.Find(Query{"score": Lt(20)}).Count())
	assert.Equal(t, 2, c.Find(Query{"user": In("a", "c")}).Count())

	// Comparison operators fail on an absent field.
	assert.Equal(t, 0, c.Find(Query{"missing": Gte(0)}).Count())

	// $ne fails only on equality; absent fields pass.
	assert.Equal(t, 3, c.Find(Query{"score": Ne(20)}).Count())
}

func TestFindMultipleFieldsAreAnded(t *testing.T) {
	db := New()
	c := db.C("sessions")
	c.InsertMany([]Document{
		{"user_id": "u1", "revoked": false},
		{"user_id": "u1", "revoked": true},
		{"user_id": "u2", "revoked": false},
	})

	assert.Equal(t, 1, c.Find(Query{"user_id": "u1", "revoked": false}).Count())
}

func TestUpdateOneSetAndInc(t *testing.T) {
	db := New()
	c := db.C("users")
	id := c.InsertOne(Document{"name": "bob", "count": 2})

	matched := c.UpdateOne(Query{IDField: id}, Update{
		"$set": map[string]any{"name": "robert"},
		"$inc": map[string]any{"count": 3},
	})
	require.True(t, matched)

	doc := c.FindOne(Query{IDField: id})
	assert.Equal(t, "robert", Str(doc, "name"))
	assert.Equal(t, 5, Int(doc, "count"))
}

func TestIncOnAbsentFieldStartsAtZero(t *testing.T) {
	db := New()
	c := db.C("users")
	id := c.InsertOne(Document{"name": "eve"})

	c.UpdateOne(Query{IDField: id}, Inc(map[string]any{"failed_login_count": 1}))
	doc := c.FindOne(Query{IDField: id})
	assert.Equal(t, 1, Int(doc, "failed_login_count"))
}

func TestSetCannotChangeID(t *testing.T) {
	db := New()
	c := db.C("users")
	id := c.InsertOne(Document{"name": "a"})

	c.UpdateOne(Query{IDField: id}, Set(map[string]any{IDField: "other", "name": "b"}))
	doc := c.FindOne(Query{IDField: id})
	require.NotNil(t, doc)
	assert.Equal(t, "b", Str(doc, "name"))
	assert.Nil(t, c.FindOne(Query{IDField: "other"}))
}

func TestPushCreatesAndAppends(t *testing.T) {
	db := New()
	c := db.C("behavior")
	id := c.InsertOne(Document{})

	c.UpdateOne(Query{IDField: id}, Push(map[string]any{"accessed_services": "CRM"}))
	c.UpdateOne(Query{IDField: id}, Push(map[string]any{"accessed_services": "HR"}))

	doc := c.FindOne(Query{IDField: id})
	assert.Equal(t, []string{"CRM", "HR"}, StrSlice(doc, "accessed_services"))
}

func TestUpdateManyCountsMatches(t *testing.T) {
	db := New()
	c := db.C("sessions")
	c.InsertMany([]Document{
		{"user_id": "u1", "revoked": false},
		{"user_id": "u1", "revoked": false},
		{"user_id": "u2", "revoked": false},
	})

	n := c.UpdateMany(Query{"user_id": "u1"}, Set(map[string]any{"revoked": true}))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, c.CountDocuments(Query{"revoked": true}))
}

func TestDeleteOne(t *testing.T) {
	db := New()
	c := db.C("items")
	c.InsertMany([]Document{{"k": "a"}, {"k": "a"}, {"k": "b"}})

	assert.True(t, c.DeleteOne(Query{"k": "a"}))
	assert.Equal(t, 1, c.CountDocuments(Query{"k": "a"}))
	assert.False(t, c.DeleteOne(Query{"k": "zzz"}))
}

func TestDistinct(t *testing.T) {
	db := New()
	c := db.C("logs")
	c.InsertMany([]Document{
		{"app": "crm"},
		{"app": "hr"},
		{"app": "crm"},
		{"other": true},
	})

	vals := c.Distinct("app", nil)
	assert.Equal(t, []any{"crm", "hr"}, vals)
}

func TestDistinctSliceValues(t *testing.T) {
	db := New()
	c := db.C("sessions")
	c.InsertMany([]Document{
		{"accessed": []any{"crm", "hr"}},
		{"accessed": []any{"crm", "hr"}},
		{"accessed": []any{"finance"}},
	})

	vals := c.Distinct("accessed", nil)
	require.Len(t, vals, 2)
	assert.Equal(t, []any{"crm", "hr"}, vals[0])
	assert.Equal(t, []any{"finance"}, vals[1])
}

func TestCompareAcrossNumericTypes(t *testing.T) {
	db := New()
	c := db.C("scores")
	c.InsertOne(Document{"v": 10})

	// Stored int must compare against float query values.
	assert.Equal(t, 1, c.Find(Query{"v": Gte(9.5)}).Count())
	assert.Equal(t, 1, c.Find(Query{"v": 10.0}).Count())
}

func TestTimeComparison(t *testing.T) {
	db := New()
	c := db.C("attempts")
	now := time.Now().UTC()
	c.InsertMany([]Document{
		{"created_at": now.Add(-time.Hour)},
		{"created_at": now.Add(-time.Minute)},
	})

	assert.Equal(t, 1, c.CountDocuments(Query{"created_at": Gt(now.Add(-10 * time.Minute))}))
}

func TestUnknownOperatorIsIgnored(t *testing.T) {
	db := New()
	c := db.C("x")
	c.InsertMany([]Document{{"v": 1}, {"v": 2}})

	// $exists is outside the dialect; the condition is dropped.
	assert.Equal(t, 2, c.Find(Query{"v": map[string]any{"$exists": true}}).Count())
}
