// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/wallet"
)

// ErrConfigurationInvalid is returned for missing or malformed settings.
var ErrConfigurationInvalid = errors.New("configuration invalid")

type Config struct {
	TelegramToken        string        `mapstructure:"telegram_token"`
	BirdeyeAPIKey        string        `mapstructure:"birdeye_api_key"`
	PrivateKey           string        `mapstructure:"private_key"`
	DefaultThreshold     int64         `mapstructure:"default_threshold"`
	BuyAmountSOL         float64       `mapstructure:"buy_amount_sol"`
	MonitoredWallet      string        `mapstructure:"monitored_wallet"`
	RPCURL               string        `mapstructure:"rpc_url"`
	BirdeyeURL           string        `mapstructure:"birdeye_url"`
	JupiterURL           string        `mapstructure:"jupiter_url"`
	KeepaliveAddr        string        `mapstructure:"keepalive_addr"`
	HistoryFile          string        `mapstructure:"history_file"`
	LogFile              string        `mapstructure:"log_file"`
	DebugLogging         bool          `mapstructure:"debug_logging"`
	PostgresURL          string        `mapstructure:"postgres_url"`
	WatchTTL             time.Duration `mapstructure:"watch_ttl"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	AutoCheckInterval    time.Duration `mapstructure:"auto_check_interval"`
	SlippageBps          int           `mapstructure:"slippage_bps"`
	ZeroMissingMarketCap bool          `mapstructure:"zero_missing_market_cap"`
}

const (
	DefaultMonitoredWallet = "FiWe3vBZv32jv6GQeacwoBmHT88vbznjDRAgSgDwK1aa"
	DefaultRPCURL          = "https://api.mainnet-beta.solana.com"
	DefaultBirdeyeURL      = "https://public-api.birdeye.so"
	DefaultJupiterURL      = "https://quote-api.jup.ag/v6"
	DefaultKeepaliveAddr   = "0.0.0.0:8080"
	DefaultHistoryFile     = "history.log"
	DefaultLogFile         = "bot.log"
	DefaultWatchTTL        = 30 * time.Minute
	DefaultPollInterval    = time.Second
	DefaultSlippageBps     = 100
)

// minBuyAmountSOL is one lamport.
const minBuyAmountSOL = 0.000000001

// keys lists every setting; each one is read from the upper-case env variable.
var keys = []string{
	"telegram_token",
	"birdeye_api_key",
	"private_key",
	"default_threshold",
	"buy_amount_sol",
	"monitored_wallet",
	"rpc_url",
	"birdeye_url",
	"jupiter_url",
	"keepalive_addr",
	"history_file",
	"log_file",
	"debug_logging",
	"postgres_url",
	"watch_ttl",
	"poll_interval",
	"auto_check_interval",
	"slippage_bps",
	"zero_missing_market_cap",
}

// LoadConfig reads settings from the environment (and a .env file in the
// working directory if present). path is an optional config file; variables
// from the environment take precedence over it.
func LoadConfig(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()

	defaults := map[string]interface{}{
		"monitored_wallet": DefaultMonitoredWallet,
		"rpc_url":          DefaultRPCURL,
		"birdeye_url":      DefaultBirdeyeURL,
		"jupiter_url":      DefaultJupiterURL,
		"keepalive_addr":   DefaultKeepaliveAddr,
		"history_file":     DefaultHistoryFile,
		"log_file":         DefaultLogFile,
		"watch_ttl":        DefaultWatchTTL,
		"poll_interval":    DefaultPollInterval,
		"slippage_bps":     DefaultSlippageBps,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %v", ErrConfigurationInvalid, key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrConfigurationInvalid, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	cfg.normalize()

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.BirdeyeAPIKey = strings.TrimSpace(c.BirdeyeAPIKey)
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
	c.MonitoredWallet = strings.TrimSpace(c.MonitoredWallet)
	c.PostgresURL = strings.TrimSpace(c.PostgresURL)
}

// Wallet parses the operator key.
func (c *Config) Wallet() (*wallet.Wallet, error) {
	return wallet.NewWalletFromSecret(c.PrivateKey)
}

func validateConfig(cfg *Config) error {
	required := map[string]string{
		"TELEGRAM_TOKEN":  cfg.TelegramToken,
		"BIRDEYE_API_KEY": cfg.BirdeyeAPIKey,
		"PRIVATE_KEY":     cfg.PrivateKey,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("missing environment variable %s", name)
		}
	}

	if cfg.DefaultThreshold <= 0 {
		return errors.New("DEFAULT_THRESHOLD must be a positive integer")
	}
	if !(cfg.BuyAmountSOL >= minBuyAmountSOL) || math.IsInf(cfg.BuyAmountSOL, 0) {
		return errors.New("BUY_AMOUNT_SOL must be at least 0.000000001 (one lamport)")
	}
	if _, err := cfg.Wallet(); err != nil {
		return fmt.Errorf("PRIVATE_KEY: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(cfg.MonitoredWallet); err != nil {
		return fmt.Errorf("MONITORED_WALLET: %w", err)
	}

	for name, raw := range map[string]string{
		"RPC_URL":     cfg.RPCURL,
		"BIRDEYE_URL": cfg.BirdeyeURL,
		"JUPITER_URL": cfg.JupiterURL,
	} {
		if err := validateURL(raw, "http"); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.PostgresURL != "" {
		if err := validateURL(cfg.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("POSTGRES_URL: %w", err)
		}
	}

	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.WatchTTL <= 0 {
		return errors.New("invalid WATCH_TTL")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid POLL_INTERVAL")
	}
	if cfg.AutoCheckInterval < 0 {
		return errors.New("invalid AUTO_CHECK_INTERVAL")
	}
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10_000 {
		return errors.New("SLIPPAGE_BPS must be within 1..10000")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}
