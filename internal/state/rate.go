package state

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// Bounds of a believable "tokens per native unit" rate. Sales outside this
// band are either misread or not worth displaying as a price.
var (
	PlausibleRateFloor   = decimal.New(1, -6)
	PlausibleRateCeiling = decimal.New(1, 9)
)

// RateBasis says how the raw on-chain rate was interpreted.
type RateBasis int

const (
	// PerSmallestUnit: raw counts token base units per wei.
	PerSmallestUnit RateBasis = iota
	// PerWholeUnit: raw counts token base units per whole native unit.
	PerWholeUnit
)

func (b RateBasis) String() string {
	if b == PerWholeUnit {
		return "per-whole-unit"
	}
	return "per-smallest-unit"
}

// Rate is a sale rate normalised to whole tokens per whole native unit.
//
// The contract does not say which scaling its rate uses, so both readings are
// computed and the one inside [PlausibleRateFloor, PlausibleRateCeiling] wins.
// When both or neither fit, the per-smallest-unit reading is used and
// Ambiguous is set. Treat PerNative as best effort.
type Rate struct {
	Raw             *big.Int
	PerNative       decimal.Decimal
	Basis           RateBasis
	Ambiguous       bool
	Decimals        int
	DecimalsAssumed bool
}

// NormalizeRate interprets raw using the token's decimals, assuming 18 when
// they are unknown.
func NormalizeRate(raw *big.Int, decimals *int) Rate {
	r := Rate{Raw: new(big.Int).Set(raw), Decimals: chain.NativeDecimals, DecimalsAssumed: true}
	if decimals != nil {
		r.Decimals, r.DecimalsAssumed = *decimals, false
	}

	perSmallest := decimal.NewFromBigInt(raw, int32(chain.NativeDecimals-r.Decimals))
	perWhole := decimal.NewFromBigInt(raw, int32(-r.Decimals))

	smallOK, wholeOK := plausible(perSmallest), plausible(perWhole)
	switch {
	case wholeOK && !smallOK:
		r.PerNative, r.Basis = perWhole, PerWholeUnit
	default:
		r.PerNative, r.Basis = perSmallest, PerSmallestUnit
		r.Ambiguous = smallOK == wholeOK
	}
	return r
}

// TokensFor returns the whole tokens bought with wei at this rate.
func (r Rate) TokensFor(wei *big.Int) decimal.Decimal {
	return chain.ToDecimal(wei, chain.NativeDecimals).Mul(r.PerNative)
}

func plausible(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(PlausibleRateFloor) && v.LessThanOrEqual(PlausibleRateCeiling)
}
