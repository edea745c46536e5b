package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPool signals that the venue has no pool for the requested pair. A
// data-quality condition, not a connectivity failure; callers degrade to
// "no quote" without touching endpoint health.
var ErrNoPool = errors.New("no pool for pair")

// Caller is the read-only contract-call surface venues need.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Venue prices an exact-input single-hop swap on one liquidity source.
type Venue interface {
	// Key returns the venue's configuration key.
	Key() string

	// AmountOut returns how much tokenOut amountIn of tokenIn buys, and the
	// effective fee in parts per million.
	AmountOut(ctx context.Context, ec Caller, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, uint32, error)
}
