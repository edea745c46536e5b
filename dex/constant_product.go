package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/arbimind/arbbot/config"
)

const factoryABIJson = `[
 {"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"payable":false,"stateMutability":"view","type":"function"}
]`

const pairABIJson = `[
 {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"payable":false,"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// ConstantProduct prices swaps against a Uniswap-V2-style pool: pool address
// resolved through the venue's factory, output computed locally from
// reserves with the venue's fee deducted.
type ConstantProduct struct {
	key        string
	factory    common.Address
	feeBasis   int64 // out of 1000, e.g. 3 for 0.3%
	feePpm     uint32
	factoryABI abi.ABI
	pairABI    abi.ABI

	// pair address per token pair; pools are never redeployed, so entries
	// never go stale
	pairCache *lru.Cache
}

// NewConstantProduct builds a constant-product venue from its config.
func NewConstantProduct(key string, cfg config.VenueConfig) (*ConstantProduct, error) {
	factoryABI, err := abi.JSON(strings.NewReader(factoryABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(pairABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	cache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	return &ConstantProduct{
		key:        key,
		factory:    common.HexToAddress(cfg.Factory),
		feeBasis:   cfg.FeeBasisOf1000(),
		feePpm:     cfg.FeePpm(),
		factoryABI: factoryABI,
		pairABI:    pairABI,
		pairCache:  cache,
	}, nil
}

func (v *ConstantProduct) Key() string { return v.key }

// AmountOut resolves the pool, reads its reserves, and applies the
// constant-product output formula. Returns ErrNoPool when the factory knows
// no pool for the pair.
func (v *ConstantProduct) AmountOut(ctx context.Context, ec Caller, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, uint32, error) {
	pair, err := v.pairFor(ctx, ec, tokenIn, tokenOut)
	if err != nil {
		return nil, 0, err
	}

	reserveIn, reserveOut, err := v.reserves(ctx, ec, pair, tokenIn)
	if err != nil {
		return nil, 0, err
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, 0, ErrNoPool
	}

	return GetAmountOut(amountIn, reserveIn, reserveOut, v.feeBasis), v.feePpm, nil
}

// pairFor resolves and caches the pool address for a token pair.
func (v *ConstantProduct) pairFor(ctx context.Context, ec Caller, tokenA, tokenB common.Address) (common.Address, error) {
	cacheKey := tokenA.Hex() + tokenB.Hex()
	if cached, ok := v.pairCache.Get(cacheKey); ok {
		return cached.(common.Address), nil
	}

	data, err := v.factoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := ec.CallContract(ctx, ethereum.CallMsg{To: &v.factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory getPair: %w", err)
	}
	outs, err := v.factoryABI.Methods["getPair"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("failed to decode getPair result")
	}
	pair, ok := outs[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected getPair result type")
	}
	if pair == (common.Address{}) {
		return common.Address{}, ErrNoPool
	}

	v.pairCache.Add(cacheKey, pair)
	return pair, nil
}

// reserves reads the pool's reserves ordered as (reserveIn, reserveOut)
// relative to tokenIn.
func (v *ConstantProduct) reserves(ctx context.Context, ec Caller, pair, tokenIn common.Address) (*big.Int, *big.Int, error) {
	data, _ := v.pairABI.Pack("getReserves")
	raw, err := ec.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pair getReserves: %w", err)
	}
	outs, err := v.pairABI.Methods["getReserves"].Outputs.Unpack(raw)
	if err != nil || len(outs) < 2 {
		return nil, nil, fmt.Errorf("failed to decode getReserves result")
	}
	reserve0, ok0 := outs[0].(*big.Int)
	reserve1, ok1 := outs[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("unexpected getReserves result types")
	}

	data, _ = v.pairABI.Pack("token0")
	raw, err = ec.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pair token0: %w", err)
	}
	outs, err = v.pairABI.Methods["token0"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, nil, fmt.Errorf("failed to decode token0 result")
	}
	token0, ok := outs[0].(common.Address)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected token0 result type")
	}

	if tokenIn == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// GetAmountOut computes the constant-product swap output with the fee
// deducted on the input side:
//
//	amountOut = floor(amountInWithFee * reserveOut / (reserveIn*1000 + amountInWithFee))
//
// where amountInWithFee = amountIn * (1000 - feeBasis). Integer math
// throughout, matching on-chain semantics.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBasis int64) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(1000-feeBasis))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, big.NewInt(1000)),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}
