package config

// AMM kinds. Constant-product venues are quoted locally from reserves;
// concentrated-liquidity venues delegate to an on-chain quoter contract.
const (
	KindConstantProduct       = "constant_product"
	KindConcentratedLiquidity = "concentrated_liquidity"
)

// VenueConfig identifies one on-chain liquidity venue. Immutable after load.
type VenueConfig struct {
	Name     string   `yaml:"name"`
	Router   string   `yaml:"router"`
	Factory  string   `yaml:"factory"`
	Quoter   string   `yaml:"quoter,omitempty"`
	Fee      float64  `yaml:"fee"`
	Kind     string   `yaml:"kind"`
	FeeTiers []uint32 `yaml:"fee_tiers,omitempty"`
	Enabled  bool     `yaml:"enabled"`
}

// FeeBasisOf1000 returns the venue's base fee scaled to a 1000 basis, the
// form the constant-product output formula consumes (0.003 -> 3).
func (v VenueConfig) FeeBasisOf1000() int64 {
	return int64(v.Fee*1000 + 0.5)
}

// FeePpm returns the venue's base fee in parts per million (0.003 -> 3000),
// matching concentrated-liquidity tier units.
func (v VenueConfig) FeePpm() uint32 {
	return uint32(v.Fee*1e6 + 0.5)
}

// DefaultVenues is the mainnet venue set. Balancer and Curve stay disabled
// until their pool models are supported.
func DefaultVenues() map[string]VenueConfig {
	return map[string]VenueConfig{
		"UNISWAP_V2": {
			Name:    "Uniswap V2",
			Router:  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
			Fee:     0.003,
			Kind:    KindConstantProduct,
			Enabled: true,
		},
		"UNISWAP_V3": {
			Name:     "Uniswap V3",
			Router:   "0xE592427A0AEce92De3Edee1F18E0157C05861564",
			Factory:  "0x1F98431c8aD98523631AE4a59f267346ea31F984",
			Quoter:   "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
			Fee:      0.003,
			Kind:     KindConcentratedLiquidity,
			FeeTiers: []uint32{500, 3000, 10000},
			Enabled:  true,
		},
		"SUSHISWAP": {
			Name:    "SushiSwap",
			Router:  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
			Factory: "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
			Fee:     0.003,
			Kind:    KindConstantProduct,
			Enabled: true,
		},
		"BALANCER": {
			Name:    "Balancer",
			Router:  "0xE592427A0AEce92De3Edee1F18E0157C05861564",
			Factory: "0xBA12222222228d8Ba445958a75a0704d566BF2C8",
			Fee:     0.003,
			Kind:    KindConstantProduct,
			Enabled: false,
		},
		"CURVE": {
			Name:    "Curve",
			Router:  "0x99a58482BD75cbab83b27EC03CA68fF489b5788f",
			Factory: "0xB9fc157394Af804a3578134A6585C0dc9cc990d4",
			Fee:     0.0004,
			Kind:    KindConstantProduct,
			Enabled: false,
		},
	}
}
