package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims sessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestIdentityFromToken(t *testing.T) {
	tokenString := mintToken(t, sessionClaims{
		Provider:     "google",
		AccountType:  "business",
		AccountIndex: 2,
		BusinessID:   "biz-7",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "confio-auth",
			Subject:   "user-123",
			Audience:  jwt.ClaimStrings{"confio-wallet"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := IdentityFromToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "confio-auth", identity.Issuer)
	assert.Equal(t, "user-123", identity.Subject)
	assert.Equal(t, "confio-wallet", identity.Audience)
	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "business", identity.AccountType)
	assert.Equal(t, 2, identity.AccountIndex)
	assert.Equal(t, "biz-7", identity.BusinessID)
}

func TestIdentityFromTokenRejectsGarbage(t *testing.T) {
	_, err := IdentityFromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestIdentityFromTokenRequiresSubject(t *testing.T) {
	tokenString := mintToken(t, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "confio-auth"},
	})
	_, err := IdentityFromToken(tokenString)
	assert.Error(t, err)
}

func TestFingerprintStability(t *testing.T) {
	a := &Identity{Issuer: "i", Subject: "s", Provider: "google", AccountType: "personal"}
	b := &Identity{Issuer: "i", Subject: "s", Provider: "google", AccountType: "personal"}
	c := &Identity{Issuer: "i", Subject: "other", Provider: "google", AccountType: "personal"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestDevSignerDeterministic(t *testing.T) {
	identity := &Identity{Issuer: "i", Subject: "s", Provider: "google", AccountType: "personal"}
	signer := NewDevSigner(identity)

	_, err := signer.SignTransaction(context.Background(), []byte("tx"))
	assert.Error(t, err, "signing before restore must fail")

	require.NoError(t, signer.EnsureRestored(context.Background()))
	require.NoError(t, signer.EnsureRestored(context.Background()))

	first, err := signer.SignTransaction(context.Background(), []byte("tx"))
	require.NoError(t, err)
	second, err := signer.SignTransaction(context.Background(), []byte("tx"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// raw bytes prefix the signature
	assert.Equal(t, []byte("tx"), first[:2])
	assert.Greater(t, len(first), 2)
}
