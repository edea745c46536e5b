package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbimind/arbbot/config"
)

func v3TestVenue(t *testing.T) *CLQuoter {
	t.Helper()
	v, err := NewCLQuoter("UNISWAP_V3", config.DefaultVenues()["UNISWAP_V3"])
	require.NoError(t, err)
	return v
}

func TestCLQuoterFeeTierMatchesBaseFee(t *testing.T) {
	v := v3TestVenue(t)
	// 0.3% base fee maps onto the 3000 ppm tier
	assert.Equal(t, uint32(3000), v.FeeTier())
}

func TestCLQuoterFeeTierFallsBackToFirst(t *testing.T) {
	cfg := config.DefaultVenues()["UNISWAP_V3"]
	cfg.Fee = 0.0025 // no matching tier
	v, err := NewCLQuoter("UNISWAP_V3", cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), v.FeeTier())
}

func TestCLQuoterAmountOut(t *testing.T) {
	v := v3TestVenue(t)

	caller := callerFunc(func(msg ethereum.CallMsg) ([]byte, error) {
		require.Equal(t, v.quoter, *msg.To)
		return v.quoterABI.Methods["quoteExactInputSingle"].Outputs.Pack(big.NewInt(1_234_567))
	})

	out, tier, err := v.AmountOut(context.Background(), caller,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1e18))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_234_567), out)
	assert.Equal(t, uint32(3000), tier)
}

// revertError mimics the JSON-RPC error shape of an EVM revert: it carries
// error data, unlike transport failures.
type revertError struct{ msg string }

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorData() interface{} { return "0x" }

func TestCLQuoterRevertMeansNoPool(t *testing.T) {
	v := v3TestVenue(t)

	caller := callerFunc(func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, &revertError{msg: "execution reverted"}
	})

	_, _, err := v.AmountOut(context.Background(), caller,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1e18))
	assert.ErrorIs(t, err, ErrNoPool)
}

func TestCLQuoterTransportErrorSurfaces(t *testing.T) {
	v := v3TestVenue(t)

	caller := callerFunc(func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("connection refused")
	})

	_, _, err := v.AmountOut(context.Background(), caller,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1e18))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPool)
	assert.ErrorContains(t, err, "connection refused")
}
