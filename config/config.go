package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

type ChainConfig struct {
	ID              uint64   `yaml:"id"`
	Endpoints       []string `yaml:"endpoints"`
	PrivateKey      string   `yaml:"private_key"`
	ExecutorAddress string   `yaml:"executor_address"`
	TreasuryAddress string   `yaml:"treasury_address"`
}

type ScanConfig struct {
	IntervalMs        int    `yaml:"interval_ms"`
	ErrorBackoffMs    int    `yaml:"error_backoff_ms"`
	QuoteMaxAgeSec    int    `yaml:"quote_max_age_sec"`
	GasLimit          uint64 `yaml:"gas_limit"`
	ConfirmTimeoutSec int    `yaml:"confirm_timeout_sec"`
}

type RiskConfig struct {
	MinProfitEth         float64 `yaml:"min_profit_eth"`
	MaxGasGwei           float64 `yaml:"max_gas_gwei"`
	SlippageBps          int64   `yaml:"slippage_bps"`
	MaxDeviation         float64 `yaml:"max_deviation"`
	WarnDeviation        float64 `yaml:"warn_deviation"`
	MinSuccessProb       float64 `yaml:"min_success_prob"`
	MinExpectedProfitPct float64 `yaml:"min_expected_profit_pct"`
}

type ReferenceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type ScoringConfig struct {
	PredictURL         string  `yaml:"predict_url"`
	LogURL             string  `yaml:"log_url"`
	ServiceKey         string  `yaml:"service_key"`
	ModelTag           string  `yaml:"model_tag"`
	HorizonSec         int     `yaml:"horizon_sec"`
	AlertMinConfidence float64 `yaml:"alert_min_confidence"`
}

type HealthConfig struct {
	IntervalSec   int     `yaml:"interval_sec"`
	StalenessMin  int     `yaml:"staleness_min"`
	RPCRatePerSec float64 `yaml:"rpc_rate_per_sec"`
	RPCBurst      int     `yaml:"rpc_burst"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the full process configuration. Loaded once at startup,
// read-only thereafter.
type Config struct {
	DryRun    bool                   `yaml:"dry_run"`
	Chain     ChainConfig            `yaml:"chain"`
	Scan      ScanConfig             `yaml:"scan"`
	Risk      RiskConfig             `yaml:"risk"`
	Reference ReferenceConfig        `yaml:"reference"`
	Scoring   ScoringConfig          `yaml:"scoring"`
	Health    HealthConfig           `yaml:"health"`
	Metrics   MetricsConfig          `yaml:"metrics"`
	Venues    map[string]VenueConfig `yaml:"venues"`
	Tokens    map[string]Token       `yaml:"tokens"`
	Pairs     []Pair                 `yaml:"pairs"`
}

// Load reads the YAML config at path (optional), applies defaults, and
// overlays environment variables. Call Validate before using the result.
func Load(path string) (*Config, error) {
	_ = LoadEnv()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	for _, key := range []string{EnvRPCURL, EnvRPCFallback1, EnvRPCFallback2} {
		if url := os.Getenv(key); url != "" {
			c.Chain.Endpoints = append(c.Chain.Endpoints, url)
		}
	}
	if pk := os.Getenv(EnvPrivateKey); pk != "" {
		c.Chain.PrivateKey = pk
	}
	if addr := os.Getenv(EnvExecutor); addr != "" {
		c.Chain.ExecutorAddress = addr
	}
	if addr := os.Getenv(EnvTreasury); addr != "" {
		c.Chain.TreasuryAddress = addr
	}
	if url := os.Getenv(EnvScorePredict); url != "" {
		c.Scoring.PredictURL = url
	}
	if url := os.Getenv(EnvScoreLog); url != "" {
		c.Scoring.LogURL = url
	}
	if key := os.Getenv(EnvScoreKey); key != "" {
		c.Scoring.ServiceKey = key
	}
	if base := os.Getenv(EnvCoinGeckoBase); base != "" {
		c.Reference.BaseURL = base
	}
	switch strings.ToLower(os.Getenv(EnvCoinGeckoOff)) {
	case "false", "0", "off":
		c.Reference.Enabled = false
	}
}

func (c *Config) applyDefaults() {
	if c.Chain.ID == 0 {
		c.Chain.ID = 1
	}
	if c.Scan.IntervalMs == 0 {
		c.Scan.IntervalMs = 200
	}
	if c.Scan.ErrorBackoffMs == 0 {
		c.Scan.ErrorBackoffMs = 1000
	}
	if c.Scan.QuoteMaxAgeSec == 0 {
		c.Scan.QuoteMaxAgeSec = 15
	}
	if c.Scan.GasLimit == 0 {
		c.Scan.GasLimit = 300_000
	}
	if c.Scan.ConfirmTimeoutSec == 0 {
		c.Scan.ConfirmTimeoutSec = 120
	}
	if c.Risk.MinProfitEth == 0 {
		c.Risk.MinProfitEth = 0.01
	}
	if c.Risk.MaxGasGwei == 0 {
		c.Risk.MaxGasGwei = 50
	}
	if c.Risk.SlippageBps == 0 {
		c.Risk.SlippageBps = 50
	}
	if c.Risk.MaxDeviation == 0 {
		c.Risk.MaxDeviation = 0.005
	}
	if c.Risk.WarnDeviation == 0 {
		c.Risk.WarnDeviation = 0.02
	}
	if c.Risk.MinSuccessProb == 0 {
		c.Risk.MinSuccessProb = 0.55
	}
	if c.Reference.BaseURL == "" {
		c.Reference.BaseURL = "https://api.coingecko.com/api/v3"
		c.Reference.Enabled = true
	}
	if c.Reference.TTLSeconds == 0 {
		c.Reference.TTLSeconds = 600
	}
	if c.Scoring.ModelTag == "" {
		c.Scoring.ModelTag = "default"
	}
	if c.Scoring.HorizonSec == 0 {
		c.Scoring.HorizonSec = 900
	}
	if c.Scoring.AlertMinConfidence == 0 {
		c.Scoring.AlertMinConfidence = 0.8
	}
	if c.Health.IntervalSec == 0 {
		c.Health.IntervalSec = 30
	}
	if c.Health.StalenessMin == 0 {
		c.Health.StalenessMin = 30
	}
	if c.Health.RPCRatePerSec == 0 {
		c.Health.RPCRatePerSec = 10
	}
	if c.Health.RPCBurst == 0 {
		c.Health.RPCBurst = 20
	}
	if len(c.Venues) == 0 {
		c.Venues = DefaultVenues()
	}
	if len(c.Tokens) == 0 {
		c.Tokens = DefaultTokens()
	}
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs()
	}
}

// Validate enforces the fatal startup checks. Execution-mode credentials are
// only required when dry-run is off.
func (c *Config) Validate() error {
	if len(c.Chain.Endpoints) == 0 {
		return fmt.Errorf("no RPC endpoints configured")
	}
	for key, v := range c.Venues {
		if !v.Enabled {
			continue
		}
		if v.Kind != KindConstantProduct && v.Kind != KindConcentratedLiquidity {
			return fmt.Errorf("venue %s: unknown kind %q", key, v.Kind)
		}
		if !common.IsHexAddress(v.Router) || !common.IsHexAddress(v.Factory) {
			return fmt.Errorf("venue %s: invalid router or factory address", key)
		}
		if v.Kind == KindConcentratedLiquidity && !common.IsHexAddress(v.Quoter) {
			return fmt.Errorf("venue %s: concentrated-liquidity venue requires a quoter address", key)
		}
	}
	for sym, tok := range c.Tokens {
		if !common.IsHexAddress(tok.Address) {
			return fmt.Errorf("token %s: invalid address %q", sym, tok.Address)
		}
		if tok.Decimals <= 0 || tok.Decimals > 36 {
			return fmt.Errorf("token %s: invalid decimals %d", sym, tok.Decimals)
		}
	}
	for _, p := range c.Pairs {
		if _, ok := c.Tokens[p.TokenA]; !ok {
			return fmt.Errorf("pair %s-%s: token %s not in allowlist", p.TokenA, p.TokenB, p.TokenA)
		}
		if _, ok := c.Tokens[p.TokenB]; !ok {
			return fmt.Errorf("pair %s-%s: token %s not in allowlist", p.TokenA, p.TokenB, p.TokenB)
		}
	}
	if !c.DryRun {
		pk := c.Chain.PrivateKey
		if len(pk) != 66 || !strings.HasPrefix(pk, "0x") {
			return fmt.Errorf("invalid private key format")
		}
		if !common.IsHexAddress(c.Chain.ExecutorAddress) {
			return fmt.Errorf("executor address not configured")
		}
	}
	return nil
}

// EnabledVenueKeys returns the keys of enabled venues in deterministic order.
func (c *Config) EnabledVenueKeys() []string {
	keys := make([]string, 0, len(c.Venues))
	for key, v := range c.Venues {
		if v.Enabled {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// TokenByAddress resolves an on-chain address back to its allowlist entry.
func (c *Config) TokenByAddress(addr common.Address) (Token, bool) {
	for _, tok := range c.Tokens {
		if common.HexToAddress(tok.Address) == addr {
			return tok, true
		}
	}
	return Token{}, false
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalMs) * time.Millisecond
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Scan.ErrorBackoffMs) * time.Millisecond
}

func (c *Config) QuoteMaxAge() time.Duration {
	return time.Duration(c.Scan.QuoteMaxAgeSec) * time.Second
}

func (c *Config) ReferenceTTL() time.Duration {
	return time.Duration(c.Reference.TTLSeconds) * time.Second
}

func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.IntervalSec) * time.Second
}

func (c *Config) StalenessBound() time.Duration {
	return time.Duration(c.Health.StalenessMin) * time.Minute
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Scan.ConfirmTimeoutSec) * time.Second
}
