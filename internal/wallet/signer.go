package wallet

import "context"

// Signer the opaque signing oracle: raw transaction bytes in, signed
// transaction bytes out
type Signer interface {
	SignTransaction(ctx context.Context, raw []byte) ([]byte, error)
}

// Session a restorable wallet bound to one identity. Restore must be
// attempted before signing; implementations derive the key material from the
// identity tuple and keep it only in memory.
type Session interface {
	Signer

	// EnsureRestored restores the wallet from the stored OAuth identity if
	// it is not already loaded
	EnsureRestored(ctx context.Context) error

	// Identity returns the identity this session is bound to
	Identity() *Identity
}
