package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not strictly positive
// decimal numbers.
var ErrInvalidAmount = errors.New("invalid amount")

// NativeDecimals is the number of decimals of every EVM native currency.
const NativeDecimals = 18

// ToDecimal scales a raw integer amount down by 10^decimals.
func ToDecimal(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, int32(-decimals))
}

// FormatUnits renders raw/10^decimals without trailing zeros.
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "-"
	}
	return ToDecimal(raw, decimals).String()
}

// FormatEther renders a wei amount in whole native units.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, NativeDecimals)
}

// ParseUnits converts a human decimal string into a raw integer amount. It
// rejects values with more fractional digits than decimals allows.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseEther parses a strictly positive native-currency amount into wei.
func ParseEther(s string) (*big.Int, error) {
	wei, err := ParseUnits(s, NativeDecimals)
	if err != nil {
		return nil, err
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, s)
	}
	return wei, nil
}
