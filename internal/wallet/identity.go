// Package wallet defines the local signing oracle contract and the OAuth
// identity the deterministic wallet is restored from. The derivation itself
// lives in the wallet engine; this package only carries its inputs and the
// signing call surface.
package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"
)

// Identity the tuple the deterministic wallet is keyed by
type Identity struct {
	Issuer       string `json:"iss"`
	Subject      string `json:"sub"`
	Audience     string `json:"aud"`
	Provider     string `json:"provider"`     // "google" | "apple"
	AccountType  string `json:"account_type"` // "personal" | "business"
	AccountIndex int    `json:"account_index"`
	BusinessID   string `json:"business_id,omitempty"`
}

// sessionClaims claims carried by the Confío session token
type sessionClaims struct {
	Provider     string `json:"auth_provider"`
	AccountType  string `json:"account_type"`
	AccountIndex int    `json:"account_index"`
	BusinessID   string `json:"business_id"`
	jwt.RegisteredClaims
}

// IdentityFromToken extracts the wallet identity from a session JWT.
// The token was issued to this client, so the signature is not re-verified
// here; the server remains the authority on its validity.
func IdentityFromToken(tokenString string) (*Identity, error) {
	parser := jwt.NewParser()
	claims := &sessionClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject claim")
	}

	audience := ""
	if len(claims.Audience) > 0 {
		audience = claims.Audience[0]
	}

	identity := &Identity{
		Issuer:       claims.Issuer,
		Subject:      claims.Subject,
		Audience:     audience,
		Provider:     claims.Provider,
		AccountType:  claims.AccountType,
		AccountIndex: claims.AccountIndex,
		BusinessID:   claims.BusinessID,
	}
	return identity, nil
}

// Fingerprint stable short identifier safe for logs and cache keys;
// never log the raw claims, they carry PII
func (id *Identity) Fingerprint() string {
	h := sha3.New256()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d|%s",
		id.Issuer, id.Subject, id.Audience, id.Provider, id.AccountType, id.AccountIndex, id.BusinessID)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
