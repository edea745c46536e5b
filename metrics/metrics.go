package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "arb"

var (
	OpportunitiesFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "opportunities_found_total",
		Help:      "Total profit-positive opportunities surfaced by the detector",
	})
	OpportunitiesApproved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "opportunities_approved_total",
		Help:      "Opportunities approved by the risk gate",
	})
	OpportunitiesScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "opportunities_scored_total",
		Help:      "Opportunities for which the external scoring call was attempted",
	})
	TradesSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_success_total",
		Help:      "Confirmed arbitrage executions",
	})
	TradesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_failed_total",
		Help:      "Failed arbitrage executions (revert, timeout, RPC error)",
	})
	QuoteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_errors_total",
		Help:      "Per-venue quote failures degraded to no-quote",
	})
	QuotesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_rejected_total",
		Help:      "Quotes rejected by hardening checks",
	}, []string{"reason"})
	EndpointFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_failovers_total",
		Help:      "Caller-driven endpoint rotations",
	})
	HealthyEndpoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "endpoints_healthy",
		Help:      "Endpoints currently marked healthy",
	})
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Duration of one full scan cycle",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	QuoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quote_latency_seconds",
		Help:      "Time to obtain one venue quote",
		Buckets:   prometheus.DefBuckets,
	})
	GasPriceGwei = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gas_price_gwei",
		Help:      "Current effective gas price used by the gas model",
	})
)

// Serve starts the metrics and health HTTP server, shutting down on ctx
// cancellation. Empty addr disables it.
func Serve(ctx context.Context, addr string, log *zap.Logger) {
	if addr == "" {
		log.Info("metrics disabled: empty addr")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", zap.Error(err))
		}
	}()
}
