package math

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatUnits(t *testing.T) {
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", FormatUnits(amount, 18).String())
	assert.Equal(t, "0", FormatUnits(nil, 18).String())
	assert.Equal(t, "1500000", FormatUnits(amount, 12).String())
}

func TestParseUnitsTruncates(t *testing.T) {
	d := decimal.RequireFromString("1.2345678")
	assert.Equal(t, big.NewInt(1_234_567), ParseUnits(d, 6))
}

func TestEthToWei(t *testing.T) {
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), EthToWei(0.01))
}

func TestGweiToWei(t *testing.T) {
	assert.Equal(t, big.NewInt(50_000_000_000), GweiToWei(50))
}

func TestFormatEth(t *testing.T) {
	assert.Equal(t, "0.01", FormatEth(big.NewInt(10_000_000_000_000_000)))
	assert.Equal(t, "0", FormatEth(nil))
}

func TestRatio(t *testing.T) {
	// 1800 USDC (6 decimals) per 1 WETH (18 decimals)
	weth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	usdc := big.NewInt(1800_000000)
	assert.InDelta(t, 1800, Ratio(usdc, 6, weth, 18), 1e-9)

	assert.Zero(t, Ratio(nil, 6, weth, 18))
	assert.Zero(t, Ratio(usdc, 6, big.NewInt(0), 18))
}
