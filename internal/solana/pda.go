package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program IDs.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	MetadataProgramID        = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

const (
	// PublicKeyLength is the size of an ed25519 public key.
	PublicKeyLength = 32
	// MaxSeedLength is the maximum size of a single PDA seed.
	MaxSeedLength = 32
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	pdaMarker    = "ProgramDerivedAddress"
	metadataSeed = "metadata"
)

var (
	// ErrMaxSeedLength is returned when a seed is too long or there are too many seeds.
	ErrMaxSeedLength = errors.New("max seed length exceeded")
	// ErrOnCurve is returned when a candidate address lies on the ed25519 curve.
	ErrOnCurve = errors.New("derived address is on curve")
	// ErrNoViableBump is returned when no bump yields an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
	// ErrInvalidPublicKey is returned for strings that are not base58 32-byte keys.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// DecodePublicKey decodes a base58 address and checks its length.
func DecodePublicKey(address string) ([]byte, error) {
	b, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPublicKey, address, err)
	}
	if len(b) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %s: length %d", ErrInvalidPublicKey, address, len(b))
	}
	return b, nil
}

// EncodePublicKey encodes key bytes as base58.
func EncodePublicKey(b []byte) string {
	return base58.Encode(b)
}

// CreateProgramAddress hashes seeds and programID into an address.
// The seeds are expected to already include the bump.
func CreateProgramAddress(seeds [][]byte, programID []byte) ([]byte, error) {
	if len(seeds) > MaxSeeds {
		return nil, ErrMaxSeedLength
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return nil, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID)
	h.Write([]byte(pdaMarker))
	hash := h.Sum(nil)

	if isOnCurve(hash) {
		return nil, ErrOnCurve
	}
	return hash, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, programID []byte) ([]byte, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return nil, 0, ErrMaxSeedLength
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoViableBump
}

// FindAssociatedTokenAddress derives the canonical holding address for
// (owner, mint) under the SPL Token program.
func FindAssociatedTokenAddress(owner, mint string) (string, error) {
	ownerBytes, err := DecodePublicKey(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	mintBytes, err := DecodePublicKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}

	addr, _, err := FindProgramAddress(
		[][]byte{
			ownerBytes,
			mustDecode(TokenProgramID),
			mintBytes,
		},
		mustDecode(AssociatedTokenProgramID),
	)
	if err != nil {
		return "", fmt.Errorf("derive associated token address: %w", err)
	}
	return base58.Encode(addr), nil
}

// FindMetadataAddress derives the Metaplex metadata account for a mint.
// Seeds: ["metadata", metadata_program_id, mint]
func FindMetadataAddress(mint string) (string, error) {
	mintBytes, err := DecodePublicKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}

	program := mustDecode(MetadataProgramID)
	addr, _, err := FindProgramAddress(
		[][]byte{
			[]byte(metadataSeed),
			program,
			mintBytes,
		},
		program,
	)
	if err != nil {
		return "", fmt.Errorf("derive metadata address: %w", err)
	}
	return base58.Encode(addr), nil
}

func isOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func mustDecode(address string) []byte {
	b, err := DecodePublicKey(address)
	if err != nil {
		panic(err)
	}
	return b
}
