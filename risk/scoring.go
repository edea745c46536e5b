package risk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/types"
)

const scoringTimeout = 3 * time.Second

// Scorer calls the external scoring service for a model verdict on a
// candidate trade, and reports predictions back for offline evaluation.
// Every failure mode here is non-fatal; the caller decides what an absent
// score means.
type Scorer struct {
	predictURL string
	logURL     string
	serviceKey string
	modelTag   string
	horizonSec int
	alertMin   float64
	chainID    uint64
	http       *http.Client
	log        *zap.Logger
}

// NewScorer returns nil when no predict URL is configured, which disables
// scoring entirely.
func NewScorer(cfg config.ScoringConfig, chainID uint64, log *zap.Logger) *Scorer {
	if cfg.PredictURL == "" {
		return nil
	}
	return &Scorer{
		predictURL: cfg.PredictURL,
		logURL:     cfg.LogURL,
		serviceKey: cfg.ServiceKey,
		modelTag:   cfg.ModelTag,
		horizonSec: cfg.HorizonSec,
		alertMin:   cfg.AlertMinConfidence,
		chainID:    chainID,
		http:       &http.Client{Timeout: scoringTimeout},
		log:        log.Named("scoring"),
	}
}

type predictResponse struct {
	Success bool              `json:"success"`
	Data    types.ScoreResult `json:"data"`
}

// Score posts trade features to the prediction endpoint.
func (s *Scorer) Score(ctx context.Context, req types.ScoreRequest) (*types.ScoreResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.predictURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.serviceKey != "" {
		httpReq.Header.Set("X-SERVICE-KEY", s.serviceKey)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("score request returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode score response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("scoring service rejected request")
	}
	return &out.Data, nil
}

// LogPrediction reports a scored signal to the prediction log, and raises a
// dashboard alert for high-confidence scores. Fire-and-forget; all failures
// are swallowed after a debug log. Safe to call from a goroutine.
func (s *Scorer) LogPrediction(pair string, req types.ScoreRequest, res *types.ScoreResult) {
	if s.logURL == "" || res == nil {
		return
	}

	// Minute-bucketed ID so repeat sightings of the same signal within
	// a minute collapse into one prediction record.
	raw := fmt.Sprintf("%d|%s|%s|%d|%.4f", s.chainID, pair, s.modelTag, time.Now().Unix()/60, req.ProfitPct)
	sum := sha256.Sum256([]byte(raw))
	externalID := hex.EncodeToString(sum[:])

	payload := map[string]interface{}{
		"externalId": externalID,
		"chainId":    s.chainID,
		"pair":       pair,
		"model":      s.modelTag,
		"horizonSec": s.horizonSec,
		"features":   req,
		"prediction": res,
		"createdAt":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.post(s.logURL, payload); err != nil {
		s.log.Debug("prediction log failed", zap.Error(err))
		return
	}

	if res.SuccessProb >= s.alertMin {
		s.dispatchAlert(pair, res)
	}
}

func (s *Scorer) dispatchAlert(pair string, res *types.ScoreResult) {
	alertURL, err := s.alertURL()
	if err != nil {
		s.log.Debug("alert url derivation failed", zap.Error(err))
		return
	}
	payload := map[string]interface{}{
		"pair":           pair,
		"confidence":     res.SuccessProb,
		"recommendation": res.Recommendation,
		"message":        fmt.Sprintf("high-confidence signal on %s (%.0f%%)", pair, res.SuccessProb*100),
	}
	if err := s.post(alertURL, payload); err != nil {
		s.log.Debug("alert dispatch failed", zap.Error(err))
	}
}

// alertURL is the prediction-log URL with its last path segment replaced by
// the dashboard alerts endpoint.
func (s *Scorer) alertURL() (string, error) {
	u, err := url.Parse(s.logURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(path.Dir(u.Path), "alerts")
	return u.String(), nil
}

func (s *Scorer) post(target string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.serviceKey != "" {
		req.Header.Set("X-SERVICE-KEY", s.serviceKey)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
