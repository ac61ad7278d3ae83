package config

import (
	"time"

	redisclient "github.com/opengrants/walletd/internal/infra/redis"
	"github.com/opengrants/walletd/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Chain     ChainConfig        `yaml:"chain"`
	Contracts []ContractConfig   `yaml:"contracts"`
	Signer    SignerConfig       `yaml:"signer"`
	Retry     RetryConfig        `yaml:"retry"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings for the health endpoint.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds the target chain and its candidate RPC endpoints.
// Endpoint order is priority order; the first reachable endpoint whose
// chain id matches becomes the active provider.
type ChainConfig struct {
	ChainID      int64         `yaml:"id"            mapstructure:"id"`
	Endpoints    []string      `yaml:"endpoints"     mapstructure:"endpoints"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// ContractConfig holds the binding inputs for one platform contract.
// Address may be empty; the facade then degrades instead of crashing.
type ContractConfig struct {
	Name    string `yaml:"name"    mapstructure:"name"`
	Address string `yaml:"address" mapstructure:"address"`
	ABIPath string `yaml:"abi"     mapstructure:"abi"`
}

// SignerConfig holds the platform signing key. The key is expected to come
// in via env expansion (e.g. ${WALLET_ADMIN_KEY}), never a literal.
type SignerConfig struct {
	AdminKeyHex string `yaml:"admin_key" mapstructure:"admin_key"`
}

// RetryConfig controls the background retry worker for failed provisions.
type RetryConfig struct {
	Enabled  bool          `yaml:"enabled"  mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}
