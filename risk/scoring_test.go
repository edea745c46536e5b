package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/types"
)

func TestScorerDisabledWithoutURL(t *testing.T) {
	s := NewScorer(config.ScoringConfig{}, 1, zap.NewNop())
	assert.Nil(t, s)
}

func TestScorerSendsServiceKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-SERVICE-KEY")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    types.ScoreResult{SuccessProb: 0.7},
		})
	}))
	defer srv.Close()

	s := NewScorer(config.ScoringConfig{PredictURL: srv.URL, ServiceKey: "secret"}, 1, zap.NewNop())
	res, err := s.Score(context.Background(), types.ScoreRequest{ProfitPct: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.7, res.SuccessProb)
	assert.Equal(t, "secret", gotKey)
}

func TestScorerErrorOnUnsuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	}))
	defer srv.Close()

	s := NewScorer(config.ScoringConfig{PredictURL: srv.URL}, 1, zap.NewNop())
	_, err := s.Score(context.Background(), types.ScoreRequest{})
	assert.Error(t, err)
}

func TestLogPredictionDispatchesAlertAboveThreshold(t *testing.T) {
	var mu sync.Mutex
	paths := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.ScoringConfig{
		PredictURL:         srv.URL + "/predict",
		LogURL:             srv.URL + "/ai-dashboard/predictions",
		ModelTag:           "default",
		AlertMinConfidence: 0.8,
	}
	s := NewScorer(cfg, 1, zap.NewNop())

	s.LogPrediction("WETH-USDC", types.ScoreRequest{ProfitPct: 1.2}, &types.ScoreResult{SuccessProb: 0.9})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, paths["/ai-dashboard/predictions"])
	assert.Equal(t, 1, paths["/ai-dashboard/alerts"])
}

func TestLogPredictionSkipsAlertBelowThreshold(t *testing.T) {
	var mu sync.Mutex
	paths := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.ScoringConfig{
		PredictURL:         srv.URL + "/predict",
		LogURL:             srv.URL + "/ai-dashboard/predictions",
		ModelTag:           "default",
		AlertMinConfidence: 0.8,
	}
	s := NewScorer(cfg, 1, zap.NewNop())

	s.LogPrediction("WETH-USDC", types.ScoreRequest{ProfitPct: 1.2}, &types.ScoreResult{SuccessProb: 0.4})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, paths["/ai-dashboard/predictions"])
	assert.Equal(t, 0, paths["/ai-dashboard/alerts"])
}
