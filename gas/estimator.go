package gas

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/metrics"
	umath "github.com/arbimind/arbbot/utils/math"
)

// fallbackGasPriceWei is used until the first successful refresh. 20 gwei,
// a conservative mainnet estimate.
var fallbackGasPriceWei = big.NewInt(20_000_000_000)

// Estimator tracks the current gas price (base fee + priority tip) through
// the endpoint registry and prices transactions from it.
type Estimator struct {
	reg *endpoint.Registry
	log *zap.Logger

	mu          sync.RWMutex
	baseFee     *big.Int
	priorityFee *big.Int
}

// NewEstimator creates a gas estimator. Run must be started for live prices;
// before the first refresh all estimates use the static fallback.
func NewEstimator(reg *endpoint.Registry, log *zap.Logger) *Estimator {
	return &Estimator{
		reg: reg,
		log: log.Named("gas"),
	}
}

// Run refreshes gas prices on the given interval until ctx is cancelled.
func (e *Estimator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refresh(ctx)
		}
	}
}

// refresh fetches the latest base fee and tip. Failures keep the previous
// values; the endpoint registry is told so rotation can kick in.
func (e *Estimator) refresh(ctx context.Context) {
	ep := e.reg.Current()

	header, err := ep.Client().HeaderByNumber(ctx, nil)
	if err != nil || header == nil {
		e.log.Warn("failed to fetch latest header for gas refresh", zap.Error(err))
		if err != nil {
			e.reg.ReportError(ep, err)
		}
		return
	}

	tip, err := ep.Client().SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = big.NewInt(1_000_000_000) // 1 gwei
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		if sp, err := ep.Client().SuggestGasPrice(ctx); err == nil && sp != nil {
			baseFee = sp
		} else {
			baseFee = new(big.Int).Sub(fallbackGasPriceWei, tip)
		}
	}

	e.mu.Lock()
	e.baseFee = new(big.Int).Set(baseFee)
	e.priorityFee = new(big.Int).Set(tip)
	e.mu.Unlock()

	gwei, _ := new(big.Float).Quo(
		new(big.Float).SetInt(new(big.Int).Add(baseFee, tip)),
		big.NewFloat(1e9),
	).Float64()
	metrics.GasPriceGwei.Set(gwei)
}

// GasPrice returns the current effective gas price in wei (base fee + tip),
// or the static fallback before the first refresh.
func (e *Estimator) GasPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.baseFee == nil || e.priorityFee == nil {
		return new(big.Int).Set(fallbackGasPriceWei)
	}
	return new(big.Int).Add(e.baseFee, e.priorityFee)
}

// FeeCaps returns (maxFeePerGas, maxPriorityFeePerGas) for an EIP-1559
// transaction: twice the base fee plus tip, absorbing one full base-fee
// doubling before the deadline.
func (e *Estimator) FeeCaps() (*big.Int, *big.Int) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tip := e.priorityFee
	if tip == nil {
		tip = big.NewInt(1_000_000_000)
	}
	baseFee := e.baseFee
	if baseFee == nil {
		baseFee = new(big.Int).Sub(fallbackGasPriceWei, tip)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	return feeCap, new(big.Int).Set(tip)
}

// EstimateCost prices a transaction of the given gas limit at the current
// gas price, in wei.
func (e *Estimator) EstimateCost(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(e.GasPrice(), new(big.Int).SetUint64(gasLimit))
}

// GasPriceGwei reports the current gas price in gwei for threshold checks.
func (e *Estimator) GasPriceGwei() float64 {
	price, _ := new(big.Float).Quo(
		new(big.Float).SetInt(e.GasPrice()),
		big.NewFloat(1e9),
	).Float64()
	return price
}

// CeilingExceeded reports whether the current gas price is above the
// configured ceiling in gwei.
func (e *Estimator) CeilingExceeded(maxGwei float64) bool {
	return e.GasPrice().Cmp(umath.GweiToWei(maxGwei)) > 0
}
