package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/arbimind/arbbot/config"
)

const quoterABIJson = `[
 {"inputs":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"name":"quoteExactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

var defaultFeeTiers = []uint32{500, 3000, 10000}

// CLQuoter prices swaps on a concentrated-liquidity venue by delegating to
// its on-chain quoter contract for an exact-input single-hop quote.
type CLQuoter struct {
	key       string
	quoter    common.Address
	quoterABI abi.ABI
	feeTiers  []uint32
	baseTier  uint32
}

// NewCLQuoter builds a concentrated-liquidity venue from its config.
func NewCLQuoter(key string, cfg config.VenueConfig) (*CLQuoter, error) {
	quoterABI, err := abi.JSON(strings.NewReader(quoterABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}
	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = defaultFeeTiers
	}
	return &CLQuoter{
		key:       key,
		quoter:    common.HexToAddress(cfg.Quoter),
		quoterABI: quoterABI,
		feeTiers:  tiers,
		baseTier:  cfg.FeePpm(),
	}, nil
}

func (v *CLQuoter) Key() string { return v.key }

// FeeTier returns the tier matching the venue's configured base fee,
// falling back to the first available tier.
func (v *CLQuoter) FeeTier() uint32 {
	for _, tier := range v.feeTiers {
		if tier == v.baseTier {
			return tier
		}
	}
	return v.feeTiers[0]
}

// AmountOut asks the quoter contract for an exact-input single-hop quote at
// the selected fee tier. Quoter reverts (no pool, no liquidity) surface as
// ErrNoPool.
func (v *CLQuoter) AmountOut(ctx context.Context, ec Caller, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, uint32, error) {
	tier := v.FeeTier()

	data, err := v.quoterABI.Pack("quoteExactInputSingle",
		tokenIn, tokenOut, big.NewInt(int64(tier)), amountIn, big.NewInt(0))
	if err != nil {
		return nil, 0, err
	}

	raw, err := ec.CallContract(ctx, ethereum.CallMsg{To: &v.quoter, Data: data}, nil)
	if err != nil {
		// The quoter reverts when no pool exists at the tier, which means
		// "this venue cannot quote the pair". Transport failures are a
		// different animal: they must surface so the caller can fail the
		// endpoint over. Reverts carry EVM error data, transport errors
		// do not.
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			return nil, 0, ErrNoPool
		}
		return nil, 0, fmt.Errorf("quoter call failed: %w", err)
	}

	outs, err := v.quoterABI.Methods["quoteExactInputSingle"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, 0, fmt.Errorf("failed to decode quoter result")
	}
	amountOut, ok := outs[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected quoter result type")
	}
	return amountOut, tier, nil
}

// NewVenue constructs the adapter matching the config's AMM kind.
func NewVenue(key string, cfg config.VenueConfig) (Venue, error) {
	switch cfg.Kind {
	case config.KindConstantProduct:
		return NewConstantProduct(key, cfg)
	case config.KindConcentratedLiquidity:
		return NewCLQuoter(key, cfg)
	default:
		return nil, fmt.Errorf("unknown venue kind %q", cfg.Kind)
	}
}
