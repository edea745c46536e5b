package endpoint

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arbimind/arbbot/metrics"
)

// Client is the slice of the JSON-RPC surface the engine needs. Satisfied by
// *ethclient.Client; tests substitute fakes.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Endpoint is one registered RPC endpoint with its health state. Never
// removed once registered, only marked unhealthy.
type Endpoint struct {
	URL    string
	client Client

	healthy     bool
	lastChecked time.Time
	blockHeight uint64
	blockAge    time.Duration
}

// Client returns the endpoint's RPC client.
func (e *Endpoint) Client() Client { return e.client }

// Health is a point-in-time snapshot of one endpoint's state.
type Health struct {
	URL         string
	Healthy     bool
	LastChecked time.Time
	BlockHeight uint64
	BlockAge    time.Duration
}

// Registry tracks RPC endpoints, rotates among healthy ones, and runs
// periodic liveness/staleness checks. One instance per process, injected
// into every component that talks to the chain.
type Registry struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	current   int

	staleness time.Duration
	limiter   *rate.Limiter
	log       *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithRateLimit bounds outbound health-check RPC calls.
func WithRateLimit(perSec float64, burst int) Option {
	return func(r *Registry) {
		r.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// New dials every URL and returns a registry over the resulting clients.
// All endpoints start healthy; the first health-check cycle corrects that.
func New(urls []string, staleness time.Duration, log *zap.Logger, opts ...Option) (*Registry, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}
	endpoints := make([]*Endpoint, 0, len(urls))
	for _, url := range urls {
		ec, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", url, err)
		}
		endpoints = append(endpoints, &Endpoint{URL: url, client: ec, healthy: true})
	}
	return newRegistry(endpoints, staleness, log, opts...), nil
}

// NewWithClients builds a registry over pre-constructed clients, in order.
func NewWithClients(urls []string, clients []Client, staleness time.Duration, log *zap.Logger, opts ...Option) (*Registry, error) {
	if len(urls) == 0 || len(urls) != len(clients) {
		return nil, fmt.Errorf("urls and clients must be non-empty and equal length")
	}
	endpoints := make([]*Endpoint, len(urls))
	for i, url := range urls {
		endpoints[i] = &Endpoint{URL: url, client: clients[i], healthy: true}
	}
	return newRegistry(endpoints, staleness, log, opts...), nil
}

func newRegistry(endpoints []*Endpoint, staleness time.Duration, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		endpoints: endpoints,
		staleness: staleness,
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		log:       log.Named("endpoints"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log.Info("endpoint registry initialized", zap.Int("count", len(endpoints)))
	return r
}

// Current returns the next endpoint in rotation order among those marked
// healthy. If every endpoint is unhealthy it falls back to the
// first-registered one; callers must be prepared for that one to fail too.
func (r *Registry) Current() *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempts := 0; attempts < len(r.endpoints); attempts++ {
		ep := r.endpoints[r.current]
		if ep.healthy {
			return ep
		}
		r.current = (r.current + 1) % len(r.endpoints)
	}

	r.log.Warn("all endpoints marked unhealthy, using primary")
	return r.endpoints[0]
}

// ReportError marks ep unhealthy and advances rotation. This is the eager,
// caller-driven failover path; the periodic check will re-admit the
// endpoint once it recovers.
func (r *Registry) ReportError(ep *Endpoint, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Error("RPC call failed", zap.String("url", ep.URL), zap.Error(err))
	ep.healthy = false
	r.current = (r.current + 1) % len(r.endpoints)
	r.log.Info("switched to fallback RPC", zap.String("url", r.endpoints[r.current].URL))
}

// RunHealthChecks blocks, re-checking every endpoint on the given interval
// until ctx is cancelled. Check failures are recorded, never returned.
func (r *Registry) RunHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("RPC health checks started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("RPC health checks stopped")
			return
		case <-ticker.C:
			r.CheckAll(ctx)
		}
	}
}

// CheckAll queries every endpoint's chain head concurrently and updates
// health flags in place.
func (r *Registry) CheckAll(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, ep := range r.endpoints {
		ep := ep
		g.Go(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			r.checkOne(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	healthy := 0
	for _, ep := range r.endpoints {
		if ep.healthy {
			healthy++
		}
	}
	r.mu.Unlock()
	metrics.HealthyEndpoints.Set(float64(healthy))
	r.log.Debug("RPC health check complete",
		zap.Int("healthy", healthy),
		zap.Int("total", len(r.endpoints)),
	)
}

// checkOne marks ep unhealthy when the head query errors, returns no block,
// or the block age exceeds the staleness bound (frozen/forked view).
func (r *Registry) checkOne(ctx context.Context, ep *Endpoint) {
	header, err := ep.client.HeaderByNumber(ctx, nil)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	ep.lastChecked = now

	if err != nil || header == nil {
		ep.healthy = false
		r.log.Warn("endpoint health check failed", zap.String("url", ep.URL), zap.Error(err))
		return
	}

	age := now.Sub(time.Unix(int64(header.Time), 0))
	ep.blockHeight = header.Number.Uint64()
	ep.blockAge = age

	if age > r.staleness {
		ep.healthy = false
		r.log.Warn("endpoint serving stale chain view",
			zap.String("url", ep.URL),
			zap.Uint64("height", ep.blockHeight),
			zap.Duration("block_age", age),
		)
		return
	}
	ep.healthy = true
}

// Status returns a snapshot of every endpoint's health for monitoring.
func (r *Registry) Status() []Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Health, len(r.endpoints))
	for i, ep := range r.endpoints {
		out[i] = Health{
			URL:         ep.URL,
			Healthy:     ep.healthy,
			LastChecked: ep.lastChecked,
			BlockHeight: ep.blockHeight,
			BlockAge:    ep.blockAge,
		}
	}
	return out
}
