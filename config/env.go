package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL        = "ETHEREUM_RPC_URL"
	EnvRPCFallback1  = "ETHEREUM_RPC_FALLBACK_1"
	EnvRPCFallback2  = "ETHEREUM_RPC_FALLBACK_2"
	EnvPrivateKey    = "PRIVATE_KEY"
	EnvExecutor      = "ARB_EXECUTOR_ADDRESS"
	EnvTreasury      = "TREASURY_ADDRESS"
	EnvScorePredict  = "AI_PREDICT_URL"
	EnvScoreLog      = "AI_LOG_URL"
	EnvScoreKey      = "AI_SERVICE_KEY"
	EnvCoinGeckoBase = "COINGECKO_BASE_URL"
	EnvCoinGeckoOff  = "COINGECKO_ENABLED"
)

// LoadEnv loads environment variables from a .env file if present
func LoadEnv() error {
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
