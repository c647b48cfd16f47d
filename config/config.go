// Package config loads client configuration from a file and PLINKO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/viper"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/allowance"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/game"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
)

// EnvPrefix prefixes environment overrides, e.g. PLINKO_RPC.
const EnvPrefix = "PLINKO"

// Config is the client configuration.
type Config struct {
	RPC     string `mapstructure:"rpc"`
	ChainID uint64 `mapstructure:"chainId"`

	Game  string `mapstructure:"game"`
	Token string `mapstructure:"token"`

	// PrivateKey signs locally. Without it Sender must name an account the
	// node can sign for.
	PrivateKey string `mapstructure:"privateKey"`
	Sender     string `mapstructure:"sender"`

	// EntryPrice is in whole tokens, e.g. "10". The contract's value wins
	// once read.
	EntryPrice         string `mapstructure:"entryPrice"`
	Decimals           uint8  `mapstructure:"decimals"`
	ApprovalMultiplier int64  `mapstructure:"approvalMultiplier"`
	Native             bool   `mapstructure:"native"`

	ReceiptTimeout  time.Duration `mapstructure:"receiptTimeout"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
	ReadRandomPool  bool          `mapstructure:"readRandomPool"`

	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
	HTTPTimeout       time.Duration `mapstructure:"httpTimeout"`

	HistoryPath string `mapstructure:"historyPath"`
	LogLevel    string `mapstructure:"logLevel"`
}

// Default returns the configuration of the PulseChain deployment without
// contract addresses or credentials.
func Default() Config {
	return Config{
		RPC:                networks[PulseChainID].RPC,
		ChainID:            PulseChainID,
		EntryPrice:         "10",
		Decimals:           types.DefaultDecimals,
		ApprovalMultiplier: allowance.DefaultMultiplier,
		ReceiptTimeout:     receipt.DefaultTimeout,
		PollInterval:       receipt.DefaultInterval,
		RefreshInterval:    game.DefaultRefreshInterval,
		ReadRandomPool:     true,
		RequestsPerSecond:  20,
		Burst:              5,
		HTTPTimeout:        30 * time.Second,
		LogLevel:           "info",
	}
}

// Load reads path (JSON, YAML or TOML; may be empty) over the defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("rpc", d.RPC)
	v.SetDefault("chainId", d.ChainID)
	v.SetDefault("game", d.Game)
	v.SetDefault("token", d.Token)
	v.SetDefault("privateKey", d.PrivateKey)
	v.SetDefault("sender", d.Sender)
	v.SetDefault("entryPrice", d.EntryPrice)
	v.SetDefault("decimals", d.Decimals)
	v.SetDefault("approvalMultiplier", d.ApprovalMultiplier)
	v.SetDefault("native", d.Native)
	v.SetDefault("receiptTimeout", d.ReceiptTimeout)
	v.SetDefault("pollInterval", d.PollInterval)
	v.SetDefault("refreshInterval", d.RefreshInterval)
	v.SetDefault("readRandomPool", d.ReadRandomPool)
	v.SetDefault("requestsPerSecond", d.RequestsPerSecond)
	v.SetDefault("burst", d.Burst)
	v.SetDefault("httpTimeout", d.HTTPTimeout)
	v.SetDefault("historyPath", d.HistoryPath)
	v.SetDefault("logLevel", d.LogLevel)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.RPC == "" {
		errs = append(errs, errors.New("rpc is required"))
	}
	if !common.IsHexAddress(c.Game) {
		errs = append(errs, fmt.Errorf("invalid game address %q", c.Game))
	}
	if !c.Native && !common.IsHexAddress(c.Token) {
		errs = append(errs, fmt.Errorf("invalid token address %q", c.Token))
	}
	if c.PrivateKey == "" && !common.IsHexAddress(c.Sender) {
		errs = append(errs, errors.New("privateKey or sender is required"))
	}
	if c.PrivateKey != "" && c.ChainID == 0 {
		errs = append(errs, errors.New("chainId is required to sign with privateKey"))
	}
	if _, err := c.EntryPriceWei(); err != nil {
		errs = append(errs, err)
	}
	if c.ApprovalMultiplier < 1 {
		errs = append(errs, fmt.Errorf("approvalMultiplier must be at least 1, got %d", c.ApprovalMultiplier))
	}
	if c.ReceiptTimeout <= 0 || c.PollInterval <= 0 || c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("receiptTimeout, pollInterval and refreshInterval must be positive"))
	}
	if c.PollInterval > c.ReceiptTimeout {
		errs = append(errs, fmt.Errorf("pollInterval %s exceeds receiptTimeout %s", c.PollInterval, c.ReceiptTimeout))
	}
	if _, err := log.LvlFromString(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GameAddress returns the game contract address.
func (c *Config) GameAddress() common.Address {
	return common.HexToAddress(c.Game)
}

// TokenAddress returns the entry token address.
func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.Token)
}

// SenderAddress returns the configured sender account.
func (c *Config) SenderAddress() common.Address {
	return common.HexToAddress(c.Sender)
}

// EntryPriceWei returns the entry price in base units.
func (c *Config) EntryPriceWei() (*big.Int, error) {
	v, err := types.ParseTokenAmount(c.EntryPrice, c.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid entryPrice %q: %w", c.EntryPrice, err)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("entryPrice must be positive, got %q", c.EntryPrice)
	}
	return v, nil
}

// Network returns the configured network, if known.
func (c *Config) Network() (Network, bool) {
	return LookupNetwork(c.ChainID)
}

// SessionConfig converts c into a session configuration.
func (c *Config) SessionConfig() (game.SessionConfig, error) {
	entry, err := c.EntryPriceWei()
	if err != nil {
		return game.SessionConfig{}, err
	}
	return game.SessionConfig{
		Game:               c.GameAddress(),
		Token:              c.TokenAddress(),
		ChainID:            c.ChainID,
		EntryPrice:         entry,
		Native:             c.Native,
		ApprovalMultiplier: c.ApprovalMultiplier,
		ReceiptTimeout:     c.ReceiptTimeout,
		PollInterval:       c.PollInterval,
		RefreshInterval:    c.RefreshInterval,
		ReadRandomPool:     c.ReadRandomPool,
	}, nil
}
