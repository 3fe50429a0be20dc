package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger modes.
const (
	LedgerAlgod  = "algod"
	LedgerMemory = "memory"
)

// Upfront payment policies for settlement.
const (
	UpfrontFromJob = "job"
	UpfrontFixed   = "fixed"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string

	LedgerMode          string
	AlgodAddress        string
	AlgodToken          string
	FaucetMnemonic      string
	FaucetFundAmount    uint64
	ConfirmRounds       uint64
	AssetURL            string
	PriceRefreshSpec    string
	PriceRefreshTimeout time.Duration
	PriceCacheTTL       time.Duration
	UpfrontPolicy       string
	FixedUpfront        uint64
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LEDGER_MODE", LedgerAlgod)
	viper.SetDefault("ALGOD_ADDRESS", "http://localhost:4001")
	viper.SetDefault("FAUCET_FUND_AMOUNT", 10_000_000)
	viper.SetDefault("LEDGER_CONFIRM_ROUNDS", 4)
	viper.SetDefault("ASSET_URL", "https://ventry.app")
	viper.SetDefault("PRICE_REFRESH_SPEC", "@every 5m")
	viper.SetDefault("PRICE_REFRESH_TIMEOUT", "2m")
	viper.SetDefault("PRICE_CACHE_TTL", "15s")
	viper.SetDefault("SETTLEMENT_UPFRONT_POLICY", UpfrontFromJob)
	viper.SetDefault("SETTLEMENT_FIXED_UPFRONT", 500_000)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = viper.GetString("NODE_ENV")
	}
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),

		LedgerMode:          strings.ToLower(viper.GetString("LEDGER_MODE")),
		AlgodAddress:        viper.GetString("ALGOD_ADDRESS"),
		AlgodToken:          viper.GetString("ALGOD_TOKEN"),
		FaucetMnemonic:      viper.GetString("FAUCET_MNEMONIC"),
		FaucetFundAmount:    viper.GetUint64("FAUCET_FUND_AMOUNT"),
		ConfirmRounds:       viper.GetUint64("LEDGER_CONFIRM_ROUNDS"),
		AssetURL:            viper.GetString("ASSET_URL"),
		PriceRefreshSpec:    viper.GetString("PRICE_REFRESH_SPEC"),
		PriceRefreshTimeout: viper.GetDuration("PRICE_REFRESH_TIMEOUT"),
		PriceCacheTTL:       viper.GetDuration("PRICE_CACHE_TTL"),
		UpfrontPolicy:       upfrontPolicy(viper.GetString("SETTLEMENT_UPFRONT_POLICY")),
		FixedUpfront:        viper.GetUint64("SETTLEMENT_FIXED_UPFRONT"),
	}, nil
}

func upfrontPolicy(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), UpfrontFixed) {
		return UpfrontFixed
	}
	return UpfrontFromJob
}
