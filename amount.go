package whiskypay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AtomicAmount converts a USD price into the smallest unit of an asset
// quoted at assetUSD dollars per whole unit, rounded to the nearest integer
// unit. Decimal arithmetic avoids float64 drift on large unit counts.
func AtomicAmount(priceUSD, assetUSD float64, decimals uint8) (uint64, error) {
	if priceUSD <= 0 {
		return 0, fmt.Errorf("%w: price %v", ErrInvalidSession, priceUSD)
	}
	if assetUSD <= 0 {
		return 0, fmt.Errorf("%w: quote %v", ErrPriceUnavailable, assetUSD)
	}

	units := decimal.NewFromFloat(priceUSD).
		Div(decimal.NewFromFloat(assetUSD)).
		Mul(decimal.New(1, int32(decimals))).
		Round(0)

	if units.Sign() <= 0 || !units.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: amount %s out of range", ErrPriceUnavailable, units)
	}
	return units.BigInt().Uint64(), nil
}

// StableAtomicAmount converts a USD price into the smallest unit of a
// dollar-pegged asset, rounded to the nearest integer unit.
func StableAtomicAmount(priceUSD float64, decimals uint8) (uint64, error) {
	return AtomicAmount(priceUSD, 1, decimals)
}
