package detector

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

// QuoteSource serves hardened venue quotes.
type QuoteSource interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, venueKey string) (*types.Quote, error)
}

// GasModel prices the execution transaction.
type GasModel interface {
	EstimateCost(gasLimit uint64) *big.Int
}

// Detector fans quote requests out to every enabled venue, pairs the
// results combinatorially, and keeps the pairs that stay profitable after
// gas. Single-hop, two-venue comparisons only.
type Detector struct {
	quotes   QuoteSource
	gasModel GasModel
	venues   []string
	gasLimit uint64
	log      *zap.Logger

	// suppresses duplicate opportunity logging within logWindow
	mu        sync.Mutex
	seen      map[uint64]time.Time
	logWindow time.Duration
}

// New creates a detector over the given enabled venue keys.
func New(quotes QuoteSource, gasModel GasModel, venues []string, gasLimit uint64, log *zap.Logger) *Detector {
	return &Detector{
		quotes:    quotes,
		gasModel:  gasModel,
		venues:    venues,
		gasLimit:  gasLimit,
		log:       log.Named("detector"),
		seen:      make(map[uint64]time.Time),
		logWindow: time.Minute,
	}
}

// FindOpportunities quotes tokenA -> tokenB on every venue concurrently and
// returns all profit-positive venue pairs, sorted by descending gross
// profit. Venue failures shrink the quote set; they never fail the scan.
func (d *Detector) FindOpportunities(ctx context.Context, tokenA, tokenB common.Address, amountIn *big.Int) ([]*types.Opportunity, error) {
	results := make([]*types.Quote, len(d.venues))

	g, gctx := errgroup.WithContext(ctx)
	for i, venueKey := range d.venues {
		i, venueKey := i, venueKey
		g.Go(func() error {
			q, err := d.quotes.GetQuote(gctx, tokenA, tokenB, amountIn, venueKey)
			if err != nil {
				d.log.Debug("quote request failed", zap.String("venue", venueKey), zap.Error(err))
				return nil
			}
			results[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	quotes := make([]*types.Quote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) < 2 {
		return nil, nil
	}

	gasEstimate := d.gasModel.EstimateCost(d.gasLimit)

	var opportunities []*types.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			if opp := d.compare(quotes[i], quotes[j], amountIn, gasEstimate); opp != nil {
				opportunities = append(opportunities, opp)
			}
		}
	}

	sort.Slice(opportunities, func(a, b int) bool {
		return opportunities[a].GrossProfit.Cmp(opportunities[b].GrossProfit) > 0
	})

	for _, opp := range opportunities {
		metrics.OpportunitiesFound.Inc()
		d.logOpportunity(opp)
	}
	return opportunities, nil
}

// compare evaluates one unordered venue pair: buy on venue 1, sell on venue
// 2. Nil when the discrepancy does not survive gas.
func (d *Detector) compare(quote1, quote2 *types.Quote, amountIn, gasEstimate *big.Int) *types.Opportunity {
	gross := new(big.Int).Sub(quote2.AmountOut, quote1.AmountOut)
	if gross.Sign() <= 0 {
		return nil
	}

	net := new(big.Int).Sub(gross, gasEstimate)
	if net.Sign() <= 0 {
		return nil
	}

	profitPct := 0.0
	if amountIn.Sign() > 0 {
		f, _ := new(big.Float).Quo(
			new(big.Float).SetInt(gross),
			new(big.Float).SetInt(amountIn),
		).Float64()
		profitPct = f * 100
	}

	return &types.Opportunity{
		TokenA:        quote1.TokenIn,
		TokenB:        quote1.TokenOut,
		Venue1:        quote1.Venue,
		Venue2:        quote2.Venue,
		AmountIn:      new(big.Int).Set(amountIn),
		AmountOut1:    quote1.AmountOut,
		AmountOut2:    quote2.AmountOut,
		GrossProfit:   gross,
		GasEstimate:   gasEstimate,
		NetProfit:     net,
		ProfitPercent: profitPct,
		Route:         fmt.Sprintf("%s -> %s", quote1.Venue, quote2.Venue),
		Timestamp:     time.Now(),
	}
}

// logOpportunity logs each distinct route at most once per window; repeat
// sightings of the same discrepancy within the window stay at debug.
func (d *Detector) logOpportunity(opp *types.Opportunity) {
	key := xxhash.Sum64String(opp.Route + opp.TokenA.Hex() + opp.TokenB.Hex())
	now := time.Now()

	d.mu.Lock()
	last, repeated := d.seen[key]
	fresh := !repeated || now.Sub(last) > d.logWindow
	if fresh {
		d.seen[key] = now
		for k, t := range d.seen {
			if now.Sub(t) > d.logWindow {
				delete(d.seen, k)
			}
		}
	}
	d.mu.Unlock()

	fields := []zap.Field{
		zap.String("route", opp.Route),
		zap.String("gross_profit_eth", umath.FormatEth(opp.GrossProfit)),
		zap.String("net_profit_eth", umath.FormatEth(opp.NetProfit)),
		zap.Float64("profit_pct", opp.ProfitPercent),
	}
	if fresh {
		d.log.Info("opportunity found", fields...)
	} else {
		d.log.Debug("opportunity found", fields...)
	}
}
