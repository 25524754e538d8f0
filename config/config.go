// Package config provides configuration management for the nibifeed service
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Chain holds everything needed to sign and broadcast on Nibiru
type Chain struct {
	Mnemonic      string `envconfig:"NIBIRU_MNEMONIC" required:"true"`                         // Signer recovery phrase
	RPC           string `envconfig:"NIBIRU_RPC" default:"https://rpc.testnet-1.nibiru.fi:443"` // CometBFT RPC endpoint
	Contract      string `envconfig:"ORACLE_CONTRACT_ADDRESS" required:"true"`                 // Oracle contract address
	ChainID       string `envconfig:"CHAIN_ID" default:"nibiru-testnet-1"`
	Prefix        string `envconfig:"BECH32_PREFIX" default:"nibi"`
	HDPath        string `envconfig:"HD_PATH" default:"m/44'/118'/0'/0/0"`
	GasPrices     string `envconfig:"GAS_PRICES" default:"0.025unibi"` // Only used to sanity check the fixed fee
	FeeAmount     int64  `envconfig:"FEE_AMOUNT" default:"750000"`
	FeeDenom      string `envconfig:"FEE_DENOM" default:"unibi"`
	GasLimit      uint64 `envconfig:"GAS_LIMIT" default:"1000000"`
	TxPollMs      int64  `envconfig:"TX_POLL_INTERVAL_MS" default:"2000"`
	TxPollRetries int    `envconfig:"TX_POLL_RETRIES" default:"30"`
}

// Feed holds the scheduling and rate source settings
type Feed struct {
	UpdateIntervalMs int64  `envconfig:"UPDATE_INTERVAL" default:"3600000"`
	RatesCommand     string `envconfig:"RATES_COMMAND" default:"nibid q oracle exchange-rates -o json"`
	SubmitSpacingMs  int64  `envconfig:"SUBMIT_SPACING_MS" default:"0"`
}

// Logging holds the logger settings
type Logging struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Config holds the application configuration
type Config struct {
	Chain
	Feed
	Logging
}

// Option is a function that modifies Config
type Option func(*Config) error

// WithLogLevel overrides the configured log level
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		if level == "" {
			return nil
		}

		c.LogLevel = level

		return nil
	}
}

// WithUpdateInterval overrides the update interval
func WithUpdateInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("invalid update interval: %s", d)
		}

		c.UpdateIntervalMs = d.Milliseconds()

		return nil
	}
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	return nil
}

// validate performs validation on the chain values
func (c *Chain) validate() error {
	if strings.TrimSpace(c.Mnemonic) == "" {
		return errors.New("mnemonic is required")
	}

	if _, err := url.ParseRequestURI(c.RPC); err != nil {
		return fmt.Errorf("invalid RPC URL: %s", c.RPC)
	}

	if c.ChainID == "" {
		return errors.New("chain id is required")
	}

	if c.Prefix == "" {
		return errors.New("bech32 prefix is required")
	}

	hrp, _, err := bech32.DecodeAndConvert(c.Contract)
	if err != nil {
		return fmt.Errorf("invalid contract address %q: %w", c.Contract, err)
	}

	if hrp != c.Prefix {
		return fmt.Errorf("contract address %q does not use prefix %q", c.Contract, c.Prefix)
	}

	if c.FeeAmount <= 0 || c.FeeDenom == "" {
		return fmt.Errorf("invalid fee: %s", c.Fees())
	}

	if _, err := sdk.ParseCoinsNormalized(c.Fees()); err != nil {
		return fmt.Errorf("invalid fee %q: %w", c.Fees(), err)
	}

	if c.GasLimit == 0 {
		return errors.New("gas limit must be positive")
	}

	if _, err := sdk.ParseDecCoins(c.GasPrices); err != nil {
		return fmt.Errorf("invalid gas prices %q: %w", c.GasPrices, err)
	}

	if c.TxPollMs <= 0 || c.TxPollRetries < 0 {
		return errors.New("invalid tx poll settings")
	}

	return nil
}

// validate performs validation on the feed values
func (f *Feed) validate() error {
	if f.UpdateIntervalMs <= 0 {
		return fmt.Errorf("invalid update interval: %dms", f.UpdateIntervalMs)
	}

	if len(f.RatesCommandArgs()) == 0 {
		return errors.New("rates command is required")
	}

	if f.SubmitSpacingMs < 0 {
		return fmt.Errorf("invalid submit spacing: %dms", f.SubmitSpacingMs)
	}

	return nil
}

// validate performs validation on the config values
func (c *Config) validate() error {
	if err := c.Chain.validate(); err != nil {
		return err
	}

	return c.Feed.validate()
}

// NewConfig creates a new validated Config instance
func NewConfig(opts ...Option) (*Config, error) {
	var cfg Config

	// Process environment variables first
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Apply user options last so they take precedence
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// NewFeedConfig loads only the feed section, for commands that never sign
func NewFeedConfig() (*Feed, error) {
	var feed Feed
	if err := envconfig.Process("", &feed); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := feed.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &feed, nil
}

// Fees returns the fixed fee as a coin string, e.g. "750000unibi"
func (c *Chain) Fees() string {
	return fmt.Sprintf("%d%s", c.FeeAmount, c.FeeDenom)
}

// TxPollInterval returns the delay between tx inclusion lookups
func (c *Chain) TxPollInterval() time.Duration {
	return time.Duration(c.TxPollMs) * time.Millisecond
}

// Interval returns the update interval
func (f *Feed) Interval() time.Duration {
	return time.Duration(f.UpdateIntervalMs) * time.Millisecond
}

// SubmitSpacing returns the minimum delay between two broadcasts
func (f *Feed) SubmitSpacing() time.Duration {
	return time.Duration(f.SubmitSpacingMs) * time.Millisecond
}

// RatesCommandArgs returns the rate query command split into arguments
func (f *Feed) RatesCommandArgs() []string {
	return strings.Fields(f.RatesCommand)
}
