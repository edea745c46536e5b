package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is a single venue's answer to "how much tokenOut for amountIn of
// tokenIn". Quotes are immutable values; discard after use.
type Quote struct {
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Venue     string
	// FeePpm is the effective pool fee in parts per million (3000 = 0.3%).
	FeePpm    uint32
	Timestamp time.Time
}

// Opportunity is a detected, profit-positive two-venue price discrepancy.
// NetProfit = GrossProfit - GasEstimate holds for every surfaced instance.
type Opportunity struct {
	TokenA        common.Address
	TokenB        common.Address
	Venue1        string
	Venue2        string
	AmountIn      *big.Int
	AmountOut1    *big.Int
	AmountOut2    *big.Int
	GrossProfit   *big.Int
	GasEstimate   *big.Int
	NetProfit     *big.Int
	ProfitPercent float64
	Route         string
	Timestamp     time.Time
}

// ExecutionResult is the terminal record of one execution attempt.
type ExecutionResult struct {
	Hash              common.Hash
	Success           bool
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Profit            *big.Int
	Err               error
	Timestamp         time.Time
}

// BotStats accumulates run statistics across scan cycles. Owned by the
// orchestrator; derived fields are recomputed on every update.
type BotStats struct {
	TotalOpportunities uint64
	SuccessfulTrades   uint64
	FailedTrades       uint64
	TotalProfit        *big.Int
	TotalGasUsed       *big.Int
	AverageProfit      *big.Int
	SuccessRate        float64
	StartTime          time.Time
	LastTradeTime      time.Time
}

// ScoreRequest is the feature summary submitted to the external scoring
// service. Fields are explicit and versioned; missing data is zeroed here,
// never coerced downstream.
type ScoreRequest struct {
	ProfitPct float64 `json:"profitPct"`
	VolumeUSD float64 `json:"volumeUsd"`
	Liquidity float64 `json:"liquidity"`
	Slippage  float64 `json:"slippage"`
	GasPrice  float64 `json:"gasPrice"`
}

// ScoreResult is the scoring service's verdict for one opportunity.
type ScoreResult struct {
	ExpectedProfitPct float64 `json:"expectedProfitPct"`
	SuccessProb       float64 `json:"successProb"`
	Recommendation    string  `json:"recommendation,omitempty"`
}
