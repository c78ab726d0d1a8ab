package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

func behaviorDoc(userID string, actions, downloads int, duration float64) docstore.Document {
	return docstore.Document{
		"user_id":          userID,
		"action_count":     actions,
		"download_count":   downloads,
		"duration_minutes": duration,
	}
}

func TestBuildUserProfileNoHistory(t *testing.T) {
	db := docstore.New()
	p := BuildUserProfile(db, "u1")
	assert.Equal(t, DefaultAvgActions, p.AvgActions)
	assert.Equal(t, DefaultStdActions, p.StdActions)
	assert.Equal(t, DefaultAvgDownloads, p.AvgDownloads)
	assert.Equal(t, DefaultAvgDuration, p.AvgDuration)
	assert.Equal(t, 0, p.TotalSessions)
}

func TestBuildUserProfileFromHistory(t *testing.T) {
	db := docstore.New()
	c := db.C(domain.ColSessionBehavior)
	c.InsertOne(behaviorDoc("u1", 10, 2, 30))
	c.InsertOne(behaviorDoc("u1", 20, 4, 60))
	c.InsertOne(behaviorDoc("u1", 30, 6, 90))
	// Another user's behavior must not bleed in.
	c.InsertOne(behaviorDoc("u2", 500, 100, 999))

	p := BuildUserProfile(db, "u1")
	assert.Equal(t, 3, p.TotalSessions)
	assert.InDelta(t, 20.0, p.AvgActions, 0.001)
	assert.InDelta(t, 4.0, p.AvgDownloads, 0.001)
	assert.InDelta(t, 60.0, p.AvgDuration, 0.001)
	// Population std dev of {10,20,30} is sqrt(200/3).
	assert.InDelta(t, 8.1649, p.StdActions, 0.001)
}

func TestBuildUserProfileSingleSampleStdDefaults(t *testing.T) {
	db := docstore.New()
	db.C(domain.ColSessionBehavior).InsertOne(behaviorDoc("u1", 15, 1, 20))

	p := BuildUserProfile(db, "u1")
	assert.Equal(t, DefaultStdActions, p.StdActions)
	assert.InDelta(t, 15.0, p.AvgActions, 0.001)
}

func TestBuildUserProfileZeroMeansBootstrap(t *testing.T) {
	db := docstore.New()
	c := db.C(domain.ColSessionBehavior)
	c.InsertOne(behaviorDoc("u1", 0, 0, 0))
	c.InsertOne(behaviorDoc("u1", 0, 0, 0))

	p := BuildUserProfile(db, "u1")
	assert.Equal(t, DefaultAvgActions, p.AvgActions)
	assert.Equal(t, DefaultAvgDownloads, p.AvgDownloads)
	assert.Equal(t, DefaultAvgDuration, p.AvgDuration)
	// Identical samples floor the spread at 1.
	assert.Equal(t, 1.0, p.StdActions)
}

func TestStdDevFloor(t *testing.T) {
	assert.Equal(t, 1.0, stdDev([]float64{5, 5, 5}))
	assert.Equal(t, DefaultStdActions, stdDev([]float64{5}))
	assert.Equal(t, DefaultStdActions, stdDev(nil))
}
