package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

// GasPricer exposes the current gas view the gate needs.
type GasPricer interface {
	GasPriceGwei() float64
	CeilingExceeded(maxGwei float64) bool
}

// PriceFeed supplies USD reference prices for scoring features.
type PriceFeed interface {
	PriceUSD(ctx context.Context, symbol string) (float64, bool)
}

// Decision is the gate's verdict on a single opportunity. Scored reports
// whether the external scoring call was attempted, regardless of whether a
// verdict came back or the opportunity was approved.
type Decision struct {
	Approved bool
	Scored   bool
	Score    *types.ScoreResult
	Reason   string
}

// Gate applies the local profitability and gas checks, then consults the
// scoring service when one is configured. Local checks are authoritative;
// the remote score is advisory-with-thresholds and fails open.
type Gate struct {
	cfg    *config.Config
	gas    GasPricer
	scorer *Scorer
	feed   PriceFeed
	log    *zap.Logger
}

func NewGate(cfg *config.Config, gas GasPricer, scorer *Scorer, feed PriceFeed, log *zap.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		gas:    gas,
		scorer: scorer,
		feed:   feed,
		log:    log.Named("risk"),
	}
}

// Evaluate decides whether an opportunity is worth executing.
func (g *Gate) Evaluate(ctx context.Context, opp *types.Opportunity) Decision {
	minProfit := umath.EthToWei(g.cfg.Risk.MinProfitEth)
	if opp.NetProfit.Cmp(minProfit) < 0 {
		return Decision{Reason: fmt.Sprintf("net profit %s below minimum %s",
			umath.FormatEth(opp.NetProfit), umath.FormatEth(minProfit))}
	}

	if g.gas.CeilingExceeded(g.cfg.Risk.MaxGasGwei) {
		return Decision{Reason: fmt.Sprintf("gas price %.1f gwei above ceiling %.1f",
			g.gas.GasPriceGwei(), g.cfg.Risk.MaxGasGwei)}
	}

	if g.scorer == nil {
		metrics.OpportunitiesApproved.Inc()
		return Decision{Approved: true}
	}

	req := g.buildScoreRequest(ctx, opp)
	metrics.OpportunitiesScored.Inc()
	result, err := g.scorer.Score(ctx, req)
	if err != nil {
		// Scoring outages must not stall the pipeline. The attempt still
		// counts as scored even though no verdict came back.
		g.log.Warn("scoring unavailable, approving on local checks only", zap.Error(err))
		metrics.OpportunitiesApproved.Inc()
		return Decision{Approved: true, Scored: true}
	}
	go g.scorer.LogPrediction(opp.Route, req, result)

	if result.SuccessProb < g.cfg.Risk.MinSuccessProb {
		return Decision{Scored: true, Score: result, Reason: fmt.Sprintf(
			"success probability %.2f below threshold %.2f", result.SuccessProb, g.cfg.Risk.MinSuccessProb)}
	}
	if result.ExpectedProfitPct < g.cfg.Risk.MinExpectedProfitPct {
		return Decision{Scored: true, Score: result, Reason: fmt.Sprintf(
			"expected profit %.3f%% below threshold %.3f%%", result.ExpectedProfitPct, g.cfg.Risk.MinExpectedProfitPct)}
	}

	metrics.OpportunitiesApproved.Inc()
	return Decision{Approved: true, Scored: true, Score: result}
}

func (g *Gate) buildScoreRequest(ctx context.Context, opp *types.Opportunity) types.ScoreRequest {
	req := types.ScoreRequest{
		ProfitPct: opp.ProfitPercent,
		Slippage:  float64(g.cfg.Risk.SlippageBps) / 10000,
		GasPrice:  g.gas.GasPriceGwei(),
	}
	if g.feed == nil {
		return req
	}
	tok, ok := g.cfg.TokenByAddress(opp.TokenA)
	if !ok {
		return req
	}
	if price, ok := g.feed.PriceUSD(ctx, tok.Symbol); ok {
		in, _ := umath.FormatUnits(opp.AmountIn, tok.Decimals).Float64()
		req.VolumeUSD = in * price
		// Liquidity proxy until pool depth is sampled directly.
		req.Liquidity = req.VolumeUSD * 100
	}
	return req
}
