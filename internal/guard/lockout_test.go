package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

func lockoutStore() *docstore.Store {
	db := docstore.New()
	db.CreateCollection(domain.ColLoginAttempts)
	return db
}

func TestCheckLockedBelowThreshold(t *testing.T) {
	db := lockoutStore()
	for i := 0; i < MaxAttempts-1; i++ {
		RecordAttempt(db, "a@x.io", "1.2.3.4", false)
	}
	assert.NoError(t, CheckLocked(db, "a@x.io"))
}

func TestCheckLockedAtThreshold(t *testing.T) {
	db := lockoutStore()
	for i := 0; i < MaxAttempts; i++ {
		RecordAttempt(db, "a@x.io", "1.2.3.4", false)
	}

	err := CheckLocked(db, "a@x.io")
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "ACCOUNT_LOCKED", appErr.Code)
}

func TestCheckLockedIgnoresSuccessesAndOtherAccounts(t *testing.T) {
	db := lockoutStore()
	for i := 0; i < MaxAttempts; i++ {
		RecordAttempt(db, "a@x.io", "1.2.3.4", true)
		RecordAttempt(db, "other@x.io", "1.2.3.4", false)
	}
	assert.NoError(t, CheckLocked(db, "a@x.io"))
}

func TestCheckLockedIgnoresStaleAttempts(t *testing.T) {
	db := lockoutStore()
	stale := time.Now().UTC().Add(-LockoutWindow - time.Minute)
	for i := 0; i < MaxAttempts; i++ {
		db.C(domain.ColLoginAttempts).InsertOne(docstore.Document{
			"email":      "a@x.io",
			"ip_address": "1.2.3.4",
			"success":    false,
			"created_at": stale,
		})
	}
	assert.NoError(t, CheckLocked(db, "a@x.io"))
}
