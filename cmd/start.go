package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/bot"
	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/detector"
	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/execution"
	"github.com/arbimind/arbbot/gas"
	"github.com/arbimind/arbbot/metrics"
	"github.com/arbimind/arbbot/pricing"
	"github.com/arbimind/arbbot/risk"
	"github.com/arbimind/arbbot/utils"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage scan loop",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()
		ctx := cmd.Context()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
		if dryRun {
			cfg.DryRun = true
		}
		if err := cfg.Validate(); err != nil {
			log.Fatal("invalid configuration", zap.Error(err))
		}

		reg, err := endpoint.New(cfg.Chain.Endpoints, cfg.StalenessBound(), log,
			endpoint.WithRateLimit(cfg.Health.RPCRatePerSec, cfg.Health.RPCBurst))
		if err != nil {
			log.Fatal("failed to initialize RPC endpoints", zap.Error(err))
		}
		go reg.RunHealthChecks(ctx, cfg.HealthInterval())

		est := gas.NewEstimator(reg, log)
		go est.Run(ctx, cfg.HealthInterval())

		ref := pricing.NewReference(cfg.Reference.BaseURL, cfg.Reference.Enabled, cfg.ReferenceTTL(), log)
		validator := pricing.NewValidator(cfg, ref, log)
		quotes, err := pricing.NewClient(cfg, reg, validator, log)
		if err != nil {
			log.Fatal("failed to build quote client", zap.Error(err))
		}

		engine, err := execution.New(cfg, reg, est, log)
		if err != nil {
			log.Fatal("failed to build execution engine", zap.Error(err))
		}
		if !cfg.DryRun {
			if err := engine.SanityTransfer(ctx); err != nil {
				log.Fatal("pre-flight sanity transfer failed", zap.Error(err))
			}
			log.Info("pre-flight sanity transfer confirmed")
		}

		det := detector.New(quotes, est, cfg.EnabledVenueKeys(), cfg.Scan.GasLimit, log)
		scorer := risk.NewScorer(cfg.Scoring, cfg.Chain.ID, log)
		gate := risk.NewGate(cfg, est, scorer, ref, log)

		if cfg.Metrics.ListenAddr != "" {
			go metrics.Serve(ctx, cfg.Metrics.ListenAddr, log)
		}

		b := bot.New(cfg, det, gate, engine, log)
		if err := b.Run(ctx); err != nil {
			log.Info("bot stopped", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
