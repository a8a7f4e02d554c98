// Package layout decodes the fixed binary layouts of SPL token accounts and
// Metaplex metadata accounts.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/mr-tron/base58"
)

// TokenAccountSize is the size of an SPL token account.
const TokenAccountSize = 165

// Metaplex field caps; stored strings are padded with NULs up to these.
const (
	metadataKeyV1   = 4
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200
	// Borsh length prefixes may include some slack beyond the caps.
	lengthSlack = 4
)

var (
	// ErrShortData is returned when account data is smaller than its layout.
	ErrShortData = errors.New("account data too short")

	// ErrInvalidMetadata is returned when metadata account data is malformed.
	ErrInvalidMetadata = errors.New("invalid metadata account")
)

// TokenAccount is the decoded prefix of an SPL token account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64
}

// DecodeTokenAccount decodes SPL token account data.
// Layout: mint(32) | owner(32) | amount(8) | delegate | state | ...
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortData, len(data), TokenAccountSize)
	}

	var acc token.Account
	if err := acc.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}

	return &TokenAccount{
		Mint:   acc.Mint.String(),
		Owner:  acc.Owner.String(),
		Amount: acc.Amount,
	}, nil
}

// Metadata is the decoded prefix of a Metaplex metadata account.
type Metadata struct {
	UpdateAuthority string
	Mint            string
	Name            string
	Symbol          string
	URI             string
}

// DecodeMetadata parses Metaplex Token Metadata account data.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: String (4 + length bytes, max 32 chars)
// - symbol: String (4 + length bytes, max 10 chars)
// - uri: String (4 + length bytes, max 200 chars)
// ...creators and flags follow and are not needed here.
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) < 1+32+32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortData, len(data))
	}
	if data[0] != metadataKeyV1 {
		return nil, fmt.Errorf("%w: unexpected key %d", ErrInvalidMetadata, data[0])
	}

	m := &Metadata{
		UpdateAuthority: base58.Encode(data[1:33]),
		Mint:            base58.Encode(data[33:65]),
	}

	r := borshReader{data: data, offset: 65}

	var err error
	if m.Name, err = r.string(maxNameLength + lengthSlack); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if m.Symbol, err = r.string(maxSymbolLength + lengthSlack); err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}
	if m.URI, err = r.string(maxURILength + lengthSlack); err != nil {
		return nil, fmt.Errorf("uri: %w", err)
	}

	return m, nil
}

type borshReader struct {
	data   []byte
	offset int
}

// string reads a u32-length-prefixed string and trims NUL padding.
func (r *borshReader) string(maxLen int) (string, error) {
	if r.offset+4 > len(r.data) {
		return "", ErrShortData
	}
	n := int(binary.LittleEndian.Uint32(r.data[r.offset:]))
	r.offset += 4

	if n > maxLen {
		return "", fmt.Errorf("%w: length %d exceeds %d", ErrInvalidMetadata, n, maxLen)
	}
	if r.offset+n > len(r.data) {
		return "", ErrShortData
	}

	s := strings.TrimRight(string(r.data[r.offset:r.offset+n]), "\x00")
	r.offset += n
	return strings.TrimSpace(s), nil
}
