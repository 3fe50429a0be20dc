// Package pricing converts a company's locked valuation inputs into a scaled per-token price.
//
// Prices are integers counting minor currency units (pence): the value stored on-chain and
// compared everywhere else. All arithmetic runs on decimals so two calls with the same inputs
// always agree to the unit.
package pricing

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor currency units in one major unit.
const Scale = 100

var (
	ErrInvalidValuation = errors.New("valuation must be positive")
	ErrInvalidEquity    = errors.New("equity percentage must be in (0, 1]")
	ErrPriceOverflow    = errors.New("scaled price does not fit in 64 bits")
)

var (
	scale = decimal.NewFromInt(Scale)
	one   = decimal.NewFromInt(1)
)

// Price returns round(valuation * equityPct / max(1, supply) * Scale).
// Halves round to even.
func Price(valuation decimal.Decimal, supply uint64, equityPct decimal.Decimal) (uint64, error) {
	if !valuation.IsPositive() {
		return 0, ErrInvalidValuation
	}
	if !equityPct.IsPositive() || equityPct.GreaterThan(one) {
		return 0, ErrInvalidEquity
	}
	if supply == 0 {
		supply = 1
	}
	divisor := decimal.NewFromBigInt(new(big.Int).SetUint64(supply), 0)

	scaled := valuation.Mul(equityPct).Mul(scale).Div(divisor).RoundBank(0)
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return n.Uint64(), nil
}

// FromFloat is Price for callers holding float inputs.
func FromFloat(valuation float64, supply uint64, equityPct float64) (uint64, error) {
	return Price(decimal.NewFromFloat(valuation), supply, decimal.NewFromFloat(equityPct))
}

// Major converts a scaled price back to major currency units.
func Major(scaled uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(scaled), 0).Div(scale)
}

// ToMinor converts an amount in major units to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidValuation
	}
	n := amount.Mul(scale).Round(0).BigInt()
	if !n.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return n.Uint64(), nil
}
