package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlabs/walletgate/core"
)

func newTestTokenizer(t *testing.T) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewJWTTokenizer(key, "walletgate-test").(*JWTTokenizer)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tk := newTestTokenizer(t)
	user := &core.UserAccount{
		ID:    uuid.New(),
		Email: "player@example.com",
		Role:  core.RoleAdmin,
	}

	token, err := tk.SignAccess(user, 5*time.Minute)
	require.NoError(t, err)

	identity, err := tk.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "player@example.com", identity.Email)
	assert.True(t, identity.IsAdmin)
}

func TestAccessTokenExpired(t *testing.T) {
	tk := newTestTokenizer(t)
	user := &core.UserAccount{ID: uuid.New(), Role: core.RoleUser}

	token, err := tk.SignAccess(user, -time.Minute)
	require.NoError(t, err)

	_, err = tk.VerifyAccess(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAccessTokenWrongKeyRejected(t *testing.T) {
	tk := newTestTokenizer(t)
	other := newTestTokenizer(t)
	user := &core.UserAccount{ID: uuid.New(), Role: core.RoleUser}

	token, err := tk.SignAccess(user, 5*time.Minute)
	require.NoError(t, err)

	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAccessTokenGarbageRejected(t *testing.T) {
	tk := newTestTokenizer(t)

	_, err := tk.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
