package transfer

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"solana-token-transfer/internal/domain"
)

var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ScaleAmount converts a token amount to base units (amount × 10^9).
// The conversion is exact; amounts with more than nine fractional digits,
// non-positive amounts and amounts beyond uint64 are rejected.
func ScaleAmount(amount decimal.Decimal) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}

	scaled := amount.Shift(domain.Decimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, domain.Decimals)
	}
	if scaled.GreaterThan(maxBaseUnits) {
		return 0, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}

	return scaled.BigInt().Uint64(), nil
}

// ParseAmount parses user input such as "1.5".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
