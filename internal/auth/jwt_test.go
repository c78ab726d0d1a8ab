package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-key-0123456789abcdef"

func TestGenerateAndValidateToken(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour)

	token, err := mgr.GenerateToken("u1", "alice@x.io", "user", "s1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice@x.io", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "s1", claims.SessionID)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewJWTManager(testSecret, time.Hour).GenerateToken("u1", "a@x.io", "user", "s1")
	require.NoError(t, err)

	_, err = NewJWTManager("a-different-secret-entirely-0987654321", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	mgr := NewJWTManager(testSecret, -time.Minute)
	token, err := mgr.GenerateToken("u1", "a@x.io", "user", "s1")
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour)
	_, err := mgr.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateTokenMissingSession(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour)
	token, err := mgr.GenerateToken("u1", "a@x.io", "user", "")
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
}

func TestTokenIDsAreUnique(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour)
	t1, err := mgr.GenerateToken("u1", "a@x.io", "user", "s1")
	require.NoError(t, err)
	t2, err := mgr.GenerateToken("u1", "a@x.io", "user", "s1")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}
