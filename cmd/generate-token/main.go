package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims claims carried by a Confío session token. Mirrors what the
// auth service issues after OAuth sign-in; this tool mints one for local
// testing against a dev server.
type SessionClaims struct {
	Provider     string `json:"auth_provider"`
	AccountType  string `json:"account_type"`
	AccountIndex int    `json:"account_index"`
	BusinessID   string `json:"business_id,omitempty"`
	jwt.RegisteredClaims
}

func main() {
	subject := flag.String("subject", "dev-user-1", "OAuth subject")
	provider := flag.String("provider", "google", "auth provider: google or apple")
	accountType := flag.String("account-type", "personal", "account type: personal or business")
	accountIndex := flag.Int("account-index", 0, "account index")
	businessID := flag.String("business-id", "", "business id for business accounts")
	secret := flag.String("secret", "", "HS256 signing secret (or CONFIO_JWT_SECRET)")
	flag.Parse()

	signingSecret := *secret
	if signingSecret == "" {
		signingSecret = os.Getenv("CONFIO_JWT_SECRET")
	}
	if signingSecret == "" {
		fmt.Println("Error: no signing secret (use -secret or CONFIO_JWT_SECRET)")
		os.Exit(1)
	}

	now := time.Now()
	claims := SessionClaims{
		Provider:     *provider,
		AccountType:  *accountType,
		AccountIndex: *accountIndex,
		BusinessID:   *businessID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "confio-auth",
			Subject:   *subject,
			Audience:  jwt.ClaimStrings{"confio-wallet"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Session Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Subject:       %s\n", *subject)
	fmt.Printf("  Provider:      %s\n", *provider)
	fmt.Printf("  Account Type:  %s\n", *accountType)
	fmt.Printf("  Account Index: %d\n", *accountIndex)
	if *businessID != "" {
		fmt.Printf("  Business ID:   %s\n", *businessID)
	}
	fmt.Printf("  Expires:       %s\n", now.Add(24*time.Hour).Format(time.RFC3339))
}
