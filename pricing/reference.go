package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// coinGeckoIDs maps allowlist symbols to CoinGecko identifiers. Symbols
// absent here are not cross-validated.
var coinGeckoIDs = map[string]string{
	"ETH":  "ethereum",
	"WETH": "ethereum",
	"USDC": "usd-coin",
	"USDT": "tether",
	"DAI":  "dai",
	"WBTC": "wrapped-bitcoin",
	"LINK": "chainlink",
	"UNI":  "uniswap",
	"AAVE": "aave",
	"SOL":  "solana",
}

// fallbackUSD is used when the feed is disabled or unreachable. Static
// estimates beat failing the caller.
var fallbackUSD = map[string]float64{
	"ETH":  3000,
	"WETH": 3000,
	"USDC": 1,
	"USDT": 1,
	"DAI":  1,
	"WBTC": 60000,
	"LINK": 15,
	"UNI":  8,
	"AAVE": 90,
	"SOL":  200,
}

// Reference serves USD prices from a public feed with a TTL cache, falling
// back to static estimates when the feed is unavailable.
type Reference struct {
	baseURL string
	enabled bool
	ttl     time.Duration
	http    *http.Client
	cache   *gocache.Cache
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewReference builds a reference price client. TTL is jittered per fetch
// so a fleet of bots does not refresh in lockstep.
func NewReference(baseURL string, enabled bool, ttl time.Duration, log *zap.Logger) *Reference {
	return &Reference{
		baseURL: baseURL,
		enabled: enabled,
		ttl:     ttl,
		http:    &http.Client{Timeout: 5 * time.Second},
		cache:   gocache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(rate.Limit(0.5), 2),
		log:     log.Named("reference"),
	}
}

// PriceUSD returns the USD price for an allow-listed symbol. The second
// return is false only for symbols with no known feed mapping.
func (r *Reference) PriceUSD(ctx context.Context, symbol string) (float64, bool) {
	id, ok := coinGeckoIDs[symbol]
	if !ok {
		return 0, false
	}

	if cached, found := r.cache.Get(symbol); found {
		return cached.(float64), true
	}

	price := fallbackUSD[symbol]
	if !r.enabled {
		return price, true
	}

	fetched, err := r.fetch(ctx, id)
	if err != nil {
		r.log.Warn("reference price fetch failed, using fallback",
			zap.String("symbol", symbol), zap.Error(err))
		return price, true
	}
	if fetched > 0 {
		price = fetched
	}

	jittered := time.Duration(float64(r.ttl) * (0.9 + 0.2*rand.Float64()))
	r.cache.Set(symbol, price, jittered)
	return price, true
}

func (r *Reference) fetch(ctx context.Context, id string) (float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", r.baseURL, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reference feed returned %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode reference feed response: %w", err)
	}
	entry, ok := body[id]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("reference feed missing price for %s", id)
	}
	return entry.USD, nil
}
