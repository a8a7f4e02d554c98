// Package wallet provides the signing capability used for transfers.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidIdentity is returned for an owner address that is not a public key.
	ErrInvalidIdentity = errors.New("invalid wallet address")

	// ErrMissingSignature is returned when a transaction requires a key we do not hold.
	ErrMissingSignature = errors.New("transaction requires an unknown signer")
)

// Signer signs transactions on behalf of a single wallet.
type Signer interface {
	PublicKey() solanago.PublicKey
	Sign(tx *solanago.Transaction) error
}

// KeypairSigner signs with an in-process ed25519 private key.
type KeypairSigner struct {
	key solanago.PrivateKey
}

// NewKeypairSigner wraps a private key.
func NewKeypairSigner(key solanago.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// LoadKeypairFile reads a Solana CLI keypair file (JSON array of 64 bytes).
func LoadKeypairFile(path string) (*KeypairSigner, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key), nil
}

// PublicKey returns the wallet address.
func (s *KeypairSigner) PublicKey() solanago.PublicKey {
	return s.key.PublicKey()
}

// Sign adds this wallet's signature to tx.
func (s *KeypairSigner) Sign(tx *solanago.Transaction) error {
	pub := s.key.PublicKey()
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}
	return nil
}

// ParseIdentity validates a base58 wallet address.
func ParseIdentity(address string) (solanago.PublicKey, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return solanago.PublicKey{}, ErrInvalidIdentity
	}
	pk, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return pk, nil
}

var _ Signer = (*KeypairSigner)(nil)
