package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point scale of token amounts in this service.
const Decimals = 9

// RawHolding is a token account as returned by discovery, still undecoded.
type RawHolding struct {
	Address string // token account address
	Data    []byte // raw account data
}

// Holding is a decoded and enriched token account.
// Holdings are keyed by Address; every display field lives on the record.
type Holding struct {
	Address string
	Mint    string
	Owner   string
	Amount  uint64 // base units

	Name   *string // nil when the token has no metadata
	Symbol *string
	URI    *string
	Logo   *string // nil when unbranded or the off-chain fetch failed

	DecodeErr string // non-empty when the account data could not be decoded
}

// UIAmount returns the balance scaled by Decimals.
func (h *Holding) UIAmount() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(h.Amount), -Decimals)
}

// HasMetadata reports whether a metadata record was found for the mint.
func (h *Holding) HasMetadata() bool {
	return h.Name != nil || h.Symbol != nil
}

// DisplayName returns the name, or the mint when the token is unbranded.
func (h *Holding) DisplayName() string {
	if h.Name != nil && *h.Name != "" {
		return *h.Name
	}
	return h.Mint
}
