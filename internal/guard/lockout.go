package guard

import (
	"time"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// RecordAttempt inserts a login attempt document.
func RecordAttempt(db *docstore.Store, email, ip string, success bool) {
	db.C(domain.ColLoginAttempts).InsertOne(docstore.Document{
		"email":      email,
		"ip_address": ip,
		"success":    success,
		"created_at": time.Now().UTC(),
	})
}

// CheckLocked returns ErrAccountLocked if the account has >= MaxAttempts
// failed logins within the lockout window.
func CheckLocked(db *docstore.Store, email string) error {
	count := db.C(domain.ColLoginAttempts).CountDocuments(docstore.Query{
		"email":      email,
		"success":    false,
		"created_at": docstore.Gt(time.Now().UTC().Add(-LockoutWindow)),
	})
	if count >= MaxAttempts {
		return domain.ErrAccountLocked("too many failed login attempts, try again later")
	}
	return nil
}
