package math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	weiPerEth  = decimal.New(1, 18)
	weiPerGwei = decimal.New(1, 9)
)

// FormatUnits converts a raw token amount to its human-readable decimal
// representation. Reporting boundary only; all trading math stays on *big.Int.
func FormatUnits(amount *big.Int, decimals int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).Shift(int32(-decimals))
}

// ParseUnits converts a human-readable decimal amount to a raw integer
// amount, truncating any precision below one base unit.
func ParseUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FormatEth renders a wei amount as a decimal ETH string for logs.
func FormatEth(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEth).String()
}

// EthToWei converts an ETH amount to wei.
func EthToWei(eth float64) *big.Int {
	return decimal.NewFromFloat(eth).Mul(weiPerEth).Truncate(0).BigInt()
}

// GweiToWei converts a gwei amount to wei.
func GweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Mul(weiPerGwei).Truncate(0).BigInt()
}

// Ratio returns a/b in common decimal units as a float64. Used only at the
// reference-price comparison boundary.
func Ratio(a *big.Int, aDecimals int, b *big.Int, bDecimals int) float64 {
	if a == nil || b == nil || b.Sign() == 0 {
		return 0
	}
	r, _ := FormatUnits(a, aDecimals).Div(FormatUnits(b, bDecimals)).Float64()
	return r
}
