package config

// Token describes one allow-listed ERC-20. Only allow-listed tokens are
// resolvable to a reference-price symbol; anything else skips the
// cross-check entirely.
type Token struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// Pair is a configured token pair, both sides referenced by allowlist symbol.
type Pair struct {
	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`
}

// DefaultTokens is the mainnet allowlist.
func DefaultTokens() map[string]Token {
	return map[string]Token{
		"WETH": {Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
		"USDC": {Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
		"USDT": {Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Decimals: 6},
		"DAI":  {Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Decimals: 18},
		"WBTC": {Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Symbol: "WBTC", Decimals: 8},
		"LINK": {Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Symbol: "LINK", Decimals: 18},
		"UNI":  {Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Symbol: "UNI", Decimals: 18},
		"AAVE": {Address: "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9", Symbol: "AAVE", Decimals: 18},
	}
}

// DefaultPairs is the default scan set.
func DefaultPairs() []Pair {
	return []Pair{
		{TokenA: "WETH", TokenB: "USDC"},
		{TokenA: "WETH", TokenB: "USDT"},
		{TokenA: "WETH", TokenB: "DAI"},
		{TokenA: "WETH", TokenB: "WBTC"},
		{TokenA: "USDC", TokenB: "USDT"},
		{TokenA: "USDC", TokenB: "DAI"},
		{TokenA: "USDT", TokenB: "DAI"},
		{TokenA: "WETH", TokenB: "LINK"},
		{TokenA: "WETH", TokenB: "UNI"},
		{TokenA: "WETH", TokenB: "AAVE"},
	}
}
