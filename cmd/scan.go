package cmd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/detector"
	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/gas"
	"github.com/arbimind/arbbot/pricing"
	"github.com/arbimind/arbbot/utils"
	umath "github.com/arbimind/arbbot/utils/math"
)

// scanCmd runs a single detection pass over every configured pair and
// reports what it finds without gating or executing anything. Useful for
// verifying venue and RPC configuration.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection pass and report opportunities",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()
		ctx := cmd.Context()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
		cfg.DryRun = true
		if err := cfg.Validate(); err != nil {
			log.Fatal("invalid configuration", zap.Error(err))
		}

		reg, err := endpoint.New(cfg.Chain.Endpoints, cfg.StalenessBound(), log,
			endpoint.WithRateLimit(cfg.Health.RPCRatePerSec, cfg.Health.RPCBurst))
		if err != nil {
			log.Fatal("failed to initialize RPC endpoints", zap.Error(err))
		}

		est := gas.NewEstimator(reg, log)
		ref := pricing.NewReference(cfg.Reference.BaseURL, cfg.Reference.Enabled, cfg.ReferenceTTL(), log)
		validator := pricing.NewValidator(cfg, ref, log)
		quotes, err := pricing.NewClient(cfg, reg, validator, log)
		if err != nil {
			log.Fatal("failed to build quote client", zap.Error(err))
		}
		det := detector.New(quotes, est, cfg.EnabledVenueKeys(), cfg.Scan.GasLimit, log)

		found := 0
		for _, pair := range cfg.Pairs {
			tokA := cfg.Tokens[pair.TokenA]
			tokB := cfg.Tokens[pair.TokenB]
			amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tokA.Decimals)), nil)

			opps, err := det.FindOpportunities(ctx,
				common.HexToAddress(tokA.Address),
				common.HexToAddress(tokB.Address),
				amountIn)
			if err != nil {
				log.Warn("pair scan failed",
					zap.String("pair", pair.TokenA+"-"+pair.TokenB),
					zap.Error(err))
				continue
			}
			for _, opp := range opps {
				found++
				log.Info("opportunity",
					zap.String("pair", pair.TokenA+"-"+pair.TokenB),
					zap.String("route", opp.Route),
					zap.String("net_profit_eth", umath.FormatEth(opp.NetProfit)),
					zap.Float64("profit_pct", opp.ProfitPercent))
			}
		}
		log.Info("scan complete",
			zap.Int("pairs", len(cfg.Pairs)),
			zap.Int("opportunities", found))
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
