package bot

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/risk"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

// Detector finds profitable venue pairs for one token pair.
type Detector interface {
	FindOpportunities(ctx context.Context, tokenA, tokenB common.Address, amountIn *big.Int) ([]*types.Opportunity, error)
}

// Gate decides whether a found opportunity should trade.
type Gate interface {
	Evaluate(ctx context.Context, opp *types.Opportunity) risk.Decision
}

// Executor submits approved trades.
type Executor interface {
	Execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, error)
}

// Bot drives the scan loop: every tick it probes each configured pair,
// gates the best discrepancy, and executes it. A panicking or failing cycle
// backs off and the loop continues; only context cancellation stops it.
type Bot struct {
	cfg      *config.Config
	detector Detector
	gate     Gate
	executor Executor
	log      *zap.Logger

	running atomic.Bool

	mu    sync.Mutex
	stats types.BotStats
}

func New(cfg *config.Config, det Detector, gate Gate, exec Executor, log *zap.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		detector: det,
		gate:     gate,
		executor: exec,
		log:      log.Named("bot"),
	}
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	defer b.running.Store(false)

	b.mu.Lock()
	b.stats.StartTime = time.Now()
	b.mu.Unlock()

	b.log.Info("scan loop started",
		zap.Duration("interval", b.cfg.ScanInterval()),
		zap.Int("pairs", len(b.cfg.Pairs)),
		zap.Bool("dry_run", b.cfg.DryRun))

	ticker := time.NewTicker(b.cfg.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if ok := b.safeCycle(ctx); !ok {
				select {
				case <-ctx.Done():
				case <-time.After(b.cfg.ErrorBackoff()):
				}
			}
		}
	}
}

// Running reports whether the scan loop is active.
func (b *Bot) Running() bool { return b.running.Load() }

// safeCycle runs one scan cycle, converting panics into a failed cycle so
// one bad pair cannot take down the loop.
func (b *Bot) safeCycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("scan cycle panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	return b.runCycle(ctx)
}

func (b *Bot) runCycle(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	ok := true
	for _, pair := range b.cfg.Pairs {
		if ctx.Err() != nil {
			return false
		}
		if err := b.scanPair(ctx, pair); err != nil {
			b.log.Warn("pair scan failed",
				zap.String("pair", pair.TokenA+"-"+pair.TokenB),
				zap.Error(err))
			ok = false
		}
	}
	return ok
}

func (b *Bot) scanPair(ctx context.Context, pair config.Pair) error {
	tokA := b.cfg.Tokens[pair.TokenA]
	tokB := b.cfg.Tokens[pair.TokenB]

	// one whole unit of tokenA as the probe size
	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tokA.Decimals)), nil)

	opps, err := b.detector.FindOpportunities(ctx,
		common.HexToAddress(tokA.Address),
		common.HexToAddress(tokB.Address),
		amountIn)
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		return nil
	}

	b.mu.Lock()
	b.stats.TotalOpportunities += uint64(len(opps))
	b.mu.Unlock()

	// best first; trade the first one that clears the gate
	for _, opp := range opps {
		decision := b.gate.Evaluate(ctx, opp)
		if !decision.Approved {
			b.log.Debug("opportunity rejected",
				zap.String("route", opp.Route),
				zap.String("reason", decision.Reason))
			continue
		}
		b.trade(ctx, opp)
		break
	}
	return nil
}

func (b *Bot) trade(ctx context.Context, opp *types.Opportunity) {
	result, err := b.executor.Execute(ctx, opp)
	if err != nil {
		b.log.Error("trade execution failed", zap.String("route", opp.Route), zap.Error(err))
		b.recordTrade(&types.ExecutionResult{Err: err, Timestamp: time.Now()})
		return
	}

	if result.Success {
		b.log.Info("trade confirmed",
			zap.String("hash", result.Hash.Hex()),
			zap.String("route", opp.Route),
			zap.String("profit_eth", umath.FormatEth(result.Profit)),
			zap.Uint64("gas_used", result.GasUsed))
	} else {
		b.log.Warn("trade failed",
			zap.String("hash", result.Hash.Hex()),
			zap.String("route", opp.Route),
			zap.Error(result.Err))
	}
	b.recordTrade(result)
}

func (b *Bot) recordTrade(result *types.ExecutionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.LastTradeTime = result.Timestamp
	if result.Success {
		b.stats.SuccessfulTrades++
		if result.Profit != nil {
			if b.stats.TotalProfit == nil {
				b.stats.TotalProfit = new(big.Int)
			}
			b.stats.TotalProfit = new(big.Int).Add(b.stats.TotalProfit, result.Profit)
		}
	} else {
		b.stats.FailedTrades++
	}
	if b.stats.TotalGasUsed == nil {
		b.stats.TotalGasUsed = new(big.Int)
	}
	b.stats.TotalGasUsed = new(big.Int).Add(b.stats.TotalGasUsed, new(big.Int).SetUint64(result.GasUsed))
}

// Stats returns a snapshot with the derived rate and average fields filled.
func (b *Bot) Stats() types.BotStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	if s.TotalProfit != nil {
		s.TotalProfit = new(big.Int).Set(s.TotalProfit)
	}
	if s.TotalGasUsed != nil {
		s.TotalGasUsed = new(big.Int).Set(s.TotalGasUsed)
	}
	total := s.SuccessfulTrades + s.FailedTrades
	if total > 0 {
		s.SuccessRate = float64(s.SuccessfulTrades) / float64(total)
	}
	if s.SuccessfulTrades > 0 && s.TotalProfit != nil {
		s.AverageProfit = new(big.Int).Div(s.TotalProfit, new(big.Int).SetUint64(s.SuccessfulTrades))
	}
	return s
}
