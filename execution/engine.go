package execution

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/gas"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

const executorABIJson = `[
	{"name":"executeArbV2V3","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"tokenA","type":"address"},
		{"name":"tokenB","type":"address"},
		{"name":"amountIn","type":"uint256"},
		{"name":"v2Router","type":"address"},
		{"name":"v3Router","type":"address"},
		{"name":"v3Fee","type":"uint24"},
		{"name":"minOutV2","type":"uint256"},
		{"name":"minOutV3","type":"uint256"},
		{"name":"deadline","type":"uint256"}],
	 "outputs":[]},
	{"name":"getBalance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const (
	executionDeadline = 5 * time.Minute
	receiptPollPeriod = 2 * time.Second
	defaultV3FeeTier  = 3000
)

// Engine signs and broadcasts arbitrage transactions through the on-chain
// executor contract. One V2-style and one V3-style leg per trade.
type Engine struct {
	cfg      *config.Config
	reg      *endpoint.Registry
	gas      *gas.Estimator
	key      *ecdsa.PrivateKey
	from     common.Address
	executor common.Address
	treasury common.Address
	abi      abi.ABI
	chainID  *big.Int
	log      *zap.Logger
}

// New builds the engine. The private key is only required outside dry-run;
// in dry-run the engine can still simulate.
func New(cfg *config.Config, reg *endpoint.Registry, est *gas.Estimator, log *zap.Logger) (*Engine, error) {
	parsed, err := abi.JSON(strings.NewReader(executorABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		reg:      reg,
		gas:      est,
		executor: common.HexToAddress(cfg.Chain.ExecutorAddress),
		treasury: common.HexToAddress(cfg.Chain.TreasuryAddress),
		abi:      parsed,
		chainID:  new(big.Int).SetUint64(cfg.Chain.ID),
		log:      log.Named("execution"),
	}

	if pk := cfg.Chain.PrivateKey; pk != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(pk, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		e.key = key
		e.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return e, nil
}

// MinOutput applies the slippage tolerance to a quoted output amount.
func MinOutput(amountOut *big.Int, slippageBps int64) *big.Int {
	out := new(big.Int).Mul(amountOut, big.NewInt(10000-slippageBps))
	return out.Div(out, big.NewInt(10000))
}

// Execute submits the trade for an approved opportunity and waits for its
// receipt. In dry-run mode it only estimates gas for the built calldata.
func (e *Engine) Execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, error) {
	calldata, err := e.buildCalldata(opp)
	if err != nil {
		return nil, err
	}

	if e.cfg.DryRun {
		gasUsed, err := e.estimate(ctx, calldata)
		if err != nil {
			return nil, fmt.Errorf("dry-run simulation failed: %w", err)
		}
		e.log.Info("dry-run simulation ok",
			zap.String("route", opp.Route),
			zap.Uint64("gas_estimate", gasUsed))
		return &types.ExecutionResult{
			Success:   true,
			GasUsed:   gasUsed,
			Profit:    opp.NetProfit,
			Timestamp: time.Now(),
		}, nil
	}

	if e.key == nil {
		return nil, fmt.Errorf("no signing key configured")
	}

	tx, err := e.buildTx(ctx, calldata)
	if err != nil {
		return nil, err
	}

	ep := e.reg.Current()
	if err := ep.Client().SendTransaction(ctx, tx); err != nil {
		e.reg.ReportError(ep, err)
		metrics.TradesFailed.Inc()
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	e.log.Info("transaction broadcast",
		zap.String("hash", tx.Hash().Hex()),
		zap.String("route", opp.Route),
		zap.String("expected_profit_eth", umath.FormatEth(opp.NetProfit)))

	receipt, err := e.waitReceipt(ctx, tx.Hash())
	if err != nil {
		metrics.TradesFailed.Inc()
		return &types.ExecutionResult{
			Hash:      tx.Hash(),
			Err:       err,
			Timestamp: time.Now(),
		}, nil
	}

	result := &types.ExecutionResult{
		Hash:              tx.Hash(),
		Success:           receipt.Status == gethtypes.ReceiptStatusSuccessful,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Profit:            opp.NetProfit,
		Timestamp:         time.Now(),
	}
	if result.Success {
		metrics.TradesSucceeded.Inc()
	} else {
		metrics.TradesFailed.Inc()
		result.Err = errors.New("transaction reverted")
	}
	return result, nil
}

// buildCalldata resolves the V2 and V3 legs from the opportunity's venues
// and packs the executor call. The opportunity must combine exactly one
// constant-product venue with one concentrated-liquidity venue.
func (e *Engine) buildCalldata(opp *types.Opportunity) ([]byte, error) {
	v1, ok1 := e.cfg.Venues[opp.Venue1]
	v2, ok2 := e.cfg.Venues[opp.Venue2]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unknown venue in route %s", opp.Route)
	}

	var cpCfg, clCfg config.VenueConfig
	var cpOut, clOut *big.Int
	switch {
	case v1.Kind == config.KindConstantProduct && v2.Kind == config.KindConcentratedLiquidity:
		cpCfg, clCfg = v1, v2
		cpOut, clOut = opp.AmountOut1, opp.AmountOut2
	case v1.Kind == config.KindConcentratedLiquidity && v2.Kind == config.KindConstantProduct:
		cpCfg, clCfg = v2, v1
		cpOut, clOut = opp.AmountOut2, opp.AmountOut1
	default:
		return nil, fmt.Errorf("route %s: executor needs one V2 and one V3 venue", opp.Route)
	}

	v3Fee := big.NewInt(defaultV3FeeTier)
	if len(clCfg.FeeTiers) > 1 {
		v3Fee = big.NewInt(int64(clCfg.FeeTiers[1]))
	}

	deadline := big.NewInt(time.Now().Add(executionDeadline).Unix())
	slippage := e.cfg.Risk.SlippageBps

	return e.abi.Pack("executeArbV2V3",
		opp.TokenA,
		opp.TokenB,
		opp.AmountIn,
		common.HexToAddress(cpCfg.Router),
		common.HexToAddress(clCfg.Router),
		v3Fee,
		MinOutput(cpOut, slippage),
		MinOutput(clOut, slippage),
		deadline,
	)
}

func (e *Engine) buildTx(ctx context.Context, calldata []byte) (*gethtypes.Transaction, error) {
	ep := e.reg.Current()

	nonce, err := ep.Client().PendingNonceAt(ctx, e.from)
	if err != nil {
		e.reg.ReportError(ep, err)
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	feeCap, tipCap := e.gas.FeeCaps()
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       e.cfg.Scan.GasLimit,
		To:        &e.executor,
		Data:      calldata,
	})

	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

func (e *Engine) estimate(ctx context.Context, calldata []byte) (uint64, error) {
	client := e.reg.Current().Client()
	msg := ethereum.CallMsg{
		From: e.from,
		To:   &e.executor,
		Data: calldata,
	}
	return client.EstimateGas(ctx, msg)
}

// Simulate builds the trade calldata and estimates gas without broadcasting.
func (e *Engine) Simulate(ctx context.Context, opp *types.Opportunity) (uint64, error) {
	calldata, err := e.buildCalldata(opp)
	if err != nil {
		return 0, err
	}
	return e.estimate(ctx, calldata)
}

// ExecutorBalance reads the executor contract's balance of a token.
func (e *Engine) ExecutorBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	calldata, err := e.abi.Pack("getBalance", token)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getBalance: %w", err)
	}

	ep := e.reg.Current()
	out, err := ep.Client().CallContract(ctx, ethereum.CallMsg{To: &e.executor, Data: calldata}, nil)
	if err != nil {
		e.reg.ReportError(ep, err)
		return nil, fmt.Errorf("getBalance call failed: %w", err)
	}

	results, err := e.abi.Unpack("getBalance", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode getBalance result: %w", err)
	}
	return results[0].(*big.Int), nil
}

// SanityTransfer sends a zero-value transfer to the treasury to prove the
// signing, nonce, and broadcast path before live trading starts.
func (e *Engine) SanityTransfer(ctx context.Context) error {
	if e.key == nil {
		return fmt.Errorf("no signing key configured")
	}

	client := e.reg.Current().Client()
	nonce, err := client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}

	to := e.treasury
	if to == (common.Address{}) {
		to = e.from
	}

	feeCap, tipCap := e.gas.FeeCaps()
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return fmt.Errorf("failed to sign sanity transfer: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("sanity transfer broadcast failed: %w", err)
	}

	_, err = e.waitReceipt(ctx, signed.Hash())
	return err
}

func (e *Engine) waitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	deadline := time.Now().Add(e.cfg.ConfirmTimeout())
	ticker := time.NewTicker(receiptPollPeriod)
	defer ticker.Stop()

	for {
		receipt, err := e.reg.Current().Client().TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transaction %s not confirmed within %s", hash.Hex(), e.cfg.ConfirmTimeout())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
