package config

// Package config provides a reusable loader for orderbook-wtf configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fberger-xyz/orderbook-wtf/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for the orderbook core. It mirrors the
// structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		Name          string `mapstructure:"name" json:"name"`
		ChainID       int    `mapstructure:"chain_id" json:"chain_id"`
		NumeraireAddr string `mapstructure:"numeraire_addr" json:"numeraire_addr"` // WETH-like address
	} `mapstructure:"network" json:"network"`

	Indexer struct {
		Endpoint string `mapstructure:"endpoint" json:"endpoint"`
		AuthKey  string `mapstructure:"auth_key" json:"auth_key"`
	} `mapstructure:"indexer" json:"indexer"`

	RPC struct {
		Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	} `mapstructure:"rpc" json:"rpc"`

	Allocator struct {
		MaxIterations   int     `mapstructure:"max_iterations" json:"max_iterations"`
		EpsilonDivisor  int64   `mapstructure:"epsilon_divisor" json:"epsilon_divisor"`
		RebalanceFrac   float64 `mapstructure:"rebalance_fraction" json:"rebalance_fraction"`
		PrunePercentBps int     `mapstructure:"prune_percent_bps" json:"prune_percent_bps"`
	} `mapstructure:"allocator" json:"allocator"`

	Orderbook struct {
		GridPoints   int     `mapstructure:"grid_points" json:"grid_points"`
		GridLowMult  float64 `mapstructure:"grid_low_multiplier" json:"grid_low_multiplier"`
		GridHighMult float64 `mapstructure:"grid_high_multiplier" json:"grid_high_multiplier"`
	} `mapstructure:"orderbook" json:"orderbook"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	Testing bool `mapstructure:"testing" json:"testing"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads default.yaml, then merges env's config file (e.g. staging.yaml)
// over it if env is non-empty, then lets matching environment variables take
// final precedence. The merged result is stored in AppConfig and returned.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	// Nested keys (network.name) map to env vars with dots replaced by
	// underscores (NETWORK_NAME), matching the documented override names.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up NETWORK_NAME, INDEXER_ENDPOINT, RPC_ENDPOINT, ...

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ORDERBOOK_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("ORDERBOOK_ENV", ""))
}
