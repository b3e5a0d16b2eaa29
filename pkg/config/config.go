package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/chainsafe/escrow-bridge/pkg/escrow"
)

// Database drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Host modes select how the bridge gateway reaches remote ledgers.
const (
	HostInProcess = "inprocess"
	HostEthereum  = "ethereum"
)

// Config represents the escrow-bridge service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
	Host       HostConfig       `mapstructure:"host"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig selects the state store and holds PostgreSQL connection settings
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// MonitoringConfig contains metrics settings
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// BridgeConfig contains the gateway's own identity
type BridgeConfig struct {
	Address string `mapstructure:"address"`
}

// GatewayAddress returns the configured gateway address.
func (c BridgeConfig) GatewayAddress() common.Address {
	return common.HexToAddress(c.Address)
}

// EscrowConfig lists the escrow ledgers hosted by this process
type EscrowConfig struct {
	Ledgers []LedgerConfig `mapstructure:"ledgers"`
}

// LedgerConfig describes one hosted ledger and the tokens it is seeded with
type LedgerConfig struct {
	Address string         `mapstructure:"address"`
	Genesis []GenesisToken `mapstructure:"genesis"`
}

// GenesisToken seeds one token allowance at startup
type GenesisToken struct {
	Token        string `mapstructure:"token"`
	InitialValue string `mapstructure:"initial_value"`
}

// Amount parses InitialValue as a ledger amount.
func (g GenesisToken) Amount() (*big.Int, error) {
	v, err := escrow.ParseAmount(strings.TrimSpace(g.InitialValue))
	if err != nil {
		return nil, fmt.Errorf("invalid initial_value for token %s: %w", g.Token, err)
	}
	return v, nil
}

// HostConfig selects the bridge host implementation
type HostConfig struct {
	Mode string `mapstructure:"mode"`
}

// EthereumConfig contains settings for calling ledgers on an EVM chain
type EthereumConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ChainID         int64         `mapstructure:"chain_id"`
	PrivateKey      string        `mapstructure:"private_key"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	MaxGasPrice     string        `mapstructure:"max_gas_price"`
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	ReceiptTimeout  time.Duration `mapstructure:"receipt_timeout"`
}

// AuthConfig contains JWKS settings for the optional caller gate
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	JWKSURL  string `mapstructure:"jwks_url"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// Load loads configuration from file and environment variables.
// Environment variables use the key path with dots replaced by underscores,
// for example SERVER_PORT or DATABASE_PASSWORD.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "4m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "3m")

	// Database defaults
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "escrow_bridge")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Host defaults
	v.SetDefault("host.mode", HostInProcess)

	// Ethereum defaults
	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.private_key", "")
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.gas_limit", 300000)
	v.SetDefault("ethereum.polling_interval", "2s")
	v.SetDefault("ethereum.receipt_timeout", "2m")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwks_url", "")
}

func validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", config.Server.Port)
	}

	switch config.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", config.Database.Driver)
	}

	if !common.IsHexAddress(config.Bridge.Address) {
		return fmt.Errorf("bridge.address %q is not a valid address", config.Bridge.Address)
	}

	for i, ledger := range config.Escrow.Ledgers {
		if !common.IsHexAddress(ledger.Address) {
			return fmt.Errorf("escrow.ledgers[%d].address %q is not a valid address", i, ledger.Address)
		}
		if common.HexToAddress(ledger.Address) == config.Bridge.GatewayAddress() {
			return fmt.Errorf("escrow.ledgers[%d].address collides with bridge.address", i)
		}
		for _, g := range ledger.Genesis {
			if !common.IsHexAddress(g.Token) {
				return fmt.Errorf("escrow.ledgers[%d]: token %q is not a valid address", i, g.Token)
			}
			if _, err := g.Amount(); err != nil {
				return fmt.Errorf("escrow.ledgers[%d]: %w", i, err)
			}
		}
	}

	switch config.Host.Mode {
	case HostInProcess:
	case HostEthereum:
		if config.Ethereum.RPCURL == "" {
			return fmt.Errorf("ethereum.rpc_url is required")
		}
		if config.Ethereum.PrivateKey == "" {
			return fmt.Errorf("ethereum.private_key is required")
		}
		if config.Ethereum.PollingInterval <= 0 {
			return fmt.Errorf("ethereum.polling_interval must be positive")
		}
		if config.Ethereum.ReceiptTimeout <= 0 {
			return fmt.Errorf("ethereum.receipt_timeout must be positive")
		}
		if config.Server.RequestTimeout > 0 && config.Server.RequestTimeout <= config.Ethereum.ReceiptTimeout {
			return fmt.Errorf("server.request_timeout %s must exceed ethereum.receipt_timeout %s",
				config.Server.RequestTimeout, config.Ethereum.ReceiptTimeout)
		}
		if config.Server.WriteTimeout > 0 && config.Server.WriteTimeout <= config.Ethereum.ReceiptTimeout {
			return fmt.Errorf("server.write_timeout %s must exceed ethereum.receipt_timeout %s",
				config.Server.WriteTimeout, config.Ethereum.ReceiptTimeout)
		}
	default:
		return fmt.Errorf("host.mode %q is not supported", config.Host.Mode)
	}

	if config.Auth.Enabled && config.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth is enabled")
	}
	return nil
}
