package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DevSigner a development signing oracle for the CLI and integration tests.
// It signs the Keccak256 digest of the raw transaction bytes with a
// secp256k1 key derived from the identity fingerprint and appends the
// signature. Not a real wallet: the production signer is supplied by the
// embedding application.
type DevSigner struct {
	identity *Identity

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

// NewDevSigner creates an unrestored dev signer for the identity
func NewDevSigner(identity *Identity) *DevSigner {
	return &DevSigner{identity: identity}
}

// Identity returns the bound identity
func (s *DevSigner) Identity() *Identity { return s.identity }

// EnsureRestored derives the key material if not already loaded
func (s *DevSigner) EnsureRestored(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return nil
	}
	if s.identity == nil {
		return fmt.Errorf("dev signer has no identity to restore from")
	}

	seed := ethcrypto.Keccak256([]byte("confio-dev-wallet|" + s.identity.Fingerprint()))
	key, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		return fmt.Errorf("failed to derive dev key: %w", err)
	}
	s.key = key
	return nil
}

// SignTransaction signs the digest of the raw bytes and appends the signature
func (s *DevSigner) SignTransaction(ctx context.Context, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	if key == nil {
		return nil, fmt.Errorf("dev signer not restored")
	}

	digest := ethcrypto.Keccak256(raw)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}

	signed := make([]byte, 0, len(raw)+len(sig))
	signed = append(signed, raw...)
	signed = append(signed, sig...)
	return signed, nil
}
