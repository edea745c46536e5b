package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/dex"
	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/types"
)

// Client fetches quotes from configured venues. Venue errors degrade to "no
// quote" after the endpoint registry has been told; every returned quote
// has passed the staleness and reference-price hardening checks.
type Client struct {
	reg       *endpoint.Registry
	venues    map[string]dex.Venue
	validator *Validator
	maxAge    time.Duration
	log       *zap.Logger
}

// NewClient builds venue adapters for every configured venue (enabled or
// not; disabled venues are simply never asked).
func NewClient(cfg *config.Config, reg *endpoint.Registry, validator *Validator, log *zap.Logger) (*Client, error) {
	venues := make(map[string]dex.Venue, len(cfg.Venues))
	for key, vc := range cfg.Venues {
		v, err := dex.NewVenue(key, vc)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", key, err)
		}
		venues[key] = v
	}
	return &Client{
		reg:       reg,
		venues:    venues,
		validator: validator,
		maxAge:    cfg.QuoteMaxAge(),
		log:       log.Named("quotes"),
	}, nil
}

// GetQuote returns a hardened quote from one venue, or nil when the venue
// cannot serve one. Connectivity failures are reported to the endpoint
// registry; they never abort the caller's scan.
func (c *Client) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, venueKey string) (*types.Quote, error) {
	venue, ok := c.venues[venueKey]
	if !ok {
		return nil, fmt.Errorf("unknown venue %q", venueKey)
	}

	ep := c.reg.Current()
	start := time.Now()
	amountOut, feePpm, err := venue.AmountOut(ctx, ep.Client(), tokenIn, tokenOut, amountIn)
	metrics.QuoteLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, dex.ErrNoPool) {
			c.log.Debug("no pool on venue",
				zap.String("venue", venueKey),
				zap.String("token_in", tokenIn.Hex()),
				zap.String("token_out", tokenOut.Hex()),
			)
			return nil, nil
		}
		metrics.QuoteErrors.Inc()
		metrics.EndpointFailovers.Inc()
		c.reg.ReportError(ep, err)
		c.log.Warn("quote failed", zap.String("venue", venueKey), zap.Error(err))
		return nil, nil
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, nil
	}

	quote := &types.Quote{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		Venue:     venueKey,
		FeePpm:    feePpm,
		Timestamp: start,
	}

	return c.harden(ctx, quote), nil
}

// harden applies the unconditional staleness and reference-price checks.
func (c *Client) harden(ctx context.Context, q *types.Quote) *types.Quote {
	if age := time.Since(q.Timestamp); age > c.maxAge {
		metrics.QuotesRejected.WithLabelValues("stale").Inc()
		c.log.Warn("quote rejected: stale",
			zap.String("venue", q.Venue),
			zap.Duration("age", age),
		)
		return nil
	}
	if c.validator != nil && !c.validator.Check(ctx, q) {
		return nil
	}
	return q
}
