package pricing

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/types"
	umath "github.com/arbimind/arbbot/utils/math"
)

// Validator cross-checks a quote's implied exchange rate against the
// independent reference feed. Quotes for tokens outside the allowlist skip
// the check and are accepted as-is.
type Validator struct {
	cfg *config.Config
	ref *Reference
	log *zap.Logger

	// Two independent thresholds, checked in this order: deviation above
	// maxDeviation rejects; deviation above warnDeviation only logs. The
	// advisory bound being looser than the reject bound is inherited
	// behavior and must stay this way.
	maxDeviation  float64
	warnDeviation float64
}

// NewValidator builds a validator over the given reference feed.
func NewValidator(cfg *config.Config, ref *Reference, log *zap.Logger) *Validator {
	return &Validator{
		cfg:           cfg,
		ref:           ref,
		log:           log.Named("validator"),
		maxDeviation:  cfg.Risk.MaxDeviation,
		warnDeviation: cfg.Risk.WarnDeviation,
	}
}

// Check returns false when the quote deviates from the reference price
// beyond the hard bound. Unknown tokens and unavailable reference prices
// accept the quote unchecked.
func (v *Validator) Check(ctx context.Context, q *types.Quote) bool {
	tokenIn, okIn := v.cfg.TokenByAddress(q.TokenIn)
	tokenOut, okOut := v.cfg.TokenByAddress(q.TokenOut)
	if !okIn || !okOut {
		return true
	}

	priceIn, okIn := v.ref.PriceUSD(ctx, tokenIn.Symbol)
	priceOut, okOut := v.ref.PriceUSD(ctx, tokenOut.Symbol)
	if !okIn || !okOut || priceOut <= 0 {
		return true
	}

	implied := umath.Ratio(q.AmountOut, tokenOut.Decimals, q.AmountIn, tokenIn.Decimals)
	reference := priceIn / priceOut
	if implied <= 0 || reference <= 0 {
		return true
	}

	deviation := math.Abs(implied-reference) / reference

	if deviation > v.maxDeviation {
		metrics.QuotesRejected.WithLabelValues("deviation").Inc()
		v.log.Warn("quote rejected: price deviates from reference",
			zap.String("venue", q.Venue),
			zap.String("token_in", tokenIn.Symbol),
			zap.String("token_out", tokenOut.Symbol),
			zap.Float64("implied", implied),
			zap.Float64("reference", reference),
			zap.Float64("deviation", deviation),
		)
		return false
	}

	if deviation > v.warnDeviation {
		v.log.Warn("quote deviates from reference beyond advisory bound",
			zap.String("venue", q.Venue),
			zap.Float64("deviation", deviation),
		)
	}

	return true
}
