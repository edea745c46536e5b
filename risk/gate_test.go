package risk

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

type fakeGasPricer struct {
	gwei     float64
	exceeded bool
}

func (f *fakeGasPricer) GasPriceGwei() float64                { return f.gwei }
func (f *fakeGasPricer) CeilingExceeded(maxGwei float64) bool { return f.exceeded }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func testOpportunity(netProfitEth float64) *types.Opportunity {
	net := umath.EthToWei(netProfitEth)
	return &types.Opportunity{
		AmountIn:      big.NewInt(1e18),
		GrossProfit:   new(big.Int).Add(net, big.NewInt(1e15)),
		NetProfit:     net,
		ProfitPercent: 1.5,
		Route:         "UNISWAP_V2 -> SUSHISWAP",
		Timestamp:     time.Now(),
	}
}

func TestGateRejectsBelowMinProfit(t *testing.T) {
	cfg := testConfig(t)
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, nil, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.001))
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "below minimum")
}

func TestGateRejectsGasCeiling(t *testing.T) {
	cfg := testConfig(t)
	gate := NewGate(cfg, &fakeGasPricer{gwei: 80, exceeded: true}, nil, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "above ceiling")
}

func TestGateApprovesWithoutScorer(t *testing.T) {
	cfg := testConfig(t)
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, nil, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.True(t, d.Approved)
	assert.False(t, d.Scored)
}

func TestGateFailsOpenOnScoringOutage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scoring.PredictURL = "http://127.0.0.1:1/predict"
	scorer := NewScorer(cfg.Scoring, cfg.Chain.ID, zap.NewNop())
	require.NotNil(t, scorer)
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, scorer, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.True(t, d.Approved)
	// the call was attempted even though no verdict came back
	assert.True(t, d.Scored)
	assert.Nil(t, d.Score)
}

func scoringServer(t *testing.T, res types.ScoreResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    res,
		})
	}))
}

func TestGateRejectsLowSuccessProb(t *testing.T) {
	srv := scoringServer(t, types.ScoreResult{ExpectedProfitPct: 2, SuccessProb: 0.3, Recommendation: "skip"})
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Scoring.PredictURL = srv.URL
	scorer := NewScorer(cfg.Scoring, cfg.Chain.ID, zap.NewNop())
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, scorer, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.False(t, d.Approved)
	assert.True(t, d.Scored)
	assert.Contains(t, d.Reason, "success probability")
}

func TestGateRejectsLowExpectedProfit(t *testing.T) {
	srv := scoringServer(t, types.ScoreResult{ExpectedProfitPct: 0.01, SuccessProb: 0.9, Recommendation: "execute"})
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Scoring.PredictURL = srv.URL
	cfg.Risk.MinExpectedProfitPct = 0.5
	scorer := NewScorer(cfg.Scoring, cfg.Chain.ID, zap.NewNop())
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, scorer, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.False(t, d.Approved)
	assert.True(t, d.Scored)
	assert.Contains(t, d.Reason, "expected profit")
}

func TestGateApprovesScoredOpportunity(t *testing.T) {
	srv := scoringServer(t, types.ScoreResult{ExpectedProfitPct: 2, SuccessProb: 0.9, Recommendation: "execute"})
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Scoring.PredictURL = srv.URL
	scorer := NewScorer(cfg.Scoring, cfg.Chain.ID, zap.NewNop())
	gate := NewGate(cfg, &fakeGasPricer{gwei: 20}, scorer, nil, zap.NewNop())

	d := gate.Evaluate(context.Background(), testOpportunity(0.05))
	assert.True(t, d.Approved)
	assert.True(t, d.Scored)
	require.NotNil(t, d.Score)
	assert.Equal(t, 0.9, d.Score.SuccessProb)
}
