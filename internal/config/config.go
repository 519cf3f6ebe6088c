package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ocpp-chargepoint/internal/types"
)

// Config represents the charge point's configuration.
type Config struct {
	// Identity
	DeviceID         string `mapstructure:"device_id"`
	CentralSystemURL string `mapstructure:"central_system_url"`

	// Transaction Core retry/backoff tuning
	TransactionMessageAttempts       int           `mapstructure:"transaction_message_attempts"`
	TransactionMessageRetryInterval  time.Duration `mapstructure:"transaction_message_retry_interval"`
	ReserveConnectorZeroSupported    bool          `mapstructure:"reserve_connector_zero_supported"`
	ConnectorCount                  int           `mapstructure:"connector_count"`

	// Storage
	StorageBackend string `mapstructure:"storage_backend"` // "sqlite" | "redis"
	DatabasePath   string `mapstructure:"database_path"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
	EncryptionKey  string `mapstructure:"encryption_key"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Local control/diagnostics HTTP surface
	ControlAPIAddr      string `mapstructure:"control_api_addr"`
	ControlAPIJWTSecret string `mapstructure:"control_api_jwt_secret"`

	// Hardware adapters (id-tag sources)
	EnabledAdapters []string                           `mapstructure:"enabled_adapters"`
	AdapterConfigs  map[string]map[string]interface{} `mapstructure:"adapter_configs"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		CentralSystemURL:                "ws://localhost:8080/ocpp",
		TransactionMessageAttempts:       3,
		TransactionMessageRetryInterval:  60 * time.Second,
		ReserveConnectorZeroSupported:    false,
		ConnectorCount:                   1,
		StorageBackend:                   "sqlite",
		DatabasePath:                     "./chargepoint.db",
		RedisAddr:                        "localhost:6379",
		RedisDB:                          0,
		LogLevel:                         "info",
		LogFile:                          "",
		ControlAPIAddr:                   ":9090",
		EnabledAdapters:                  []string{"simulator"},
		AdapterConfigs:                   make(map[string]map[string]interface{}),
	}
}

// Load loads configuration from file and environment variables.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ocpp-chargepoint")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ocpp-chargepoint"))
		}
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("central_system_url", cfg.CentralSystemURL)
	v.SetDefault("transaction_message_attempts", cfg.TransactionMessageAttempts)
	v.SetDefault("transaction_message_retry_interval", cfg.TransactionMessageRetryInterval)
	v.SetDefault("reserve_connector_zero_supported", cfg.ReserveConnectorZeroSupported)
	v.SetDefault("connector_count", cfg.ConnectorCount)
	v.SetDefault("storage_backend", cfg.StorageBackend)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("control_api_addr", cfg.ControlAPIAddr)
	v.SetDefault("enabled_adapters", cfg.EnabledAdapters)
	v.SetDefault("adapter_configs", cfg.AdapterConfigs)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CentralSystemURL == "" {
		return fmt.Errorf("central_system_url is required")
	}

	if c.TransactionMessageAttempts <= 0 {
		return fmt.Errorf("transaction_message_attempts must be positive")
	}

	if c.TransactionMessageRetryInterval <= 0 {
		return fmt.Errorf("transaction_message_retry_interval must be positive")
	}

	if c.ConnectorCount <= 0 {
		return fmt.Errorf("connector_count must be positive")
	}

	switch c.StorageBackend {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("database_path is required when storage_backend is sqlite")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required when storage_backend is redis")
		}
	default:
		return fmt.Errorf("storage_backend must be one of: sqlite, redis")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	return nil
}

// GetAdapterConfigs converts the configuration into adapter configs.
func (c *Config) GetAdapterConfigs() []types.AdapterConfig {
	var configs []types.AdapterConfig

	for _, adapterName := range c.EnabledAdapters {
		cfg := types.AdapterConfig{
			Name:    adapterName,
			Enabled: true,
		}

		if settings, exists := c.AdapterConfigs[adapterName]; exists {
			cfg.Settings = settings
		} else {
			cfg.Settings = make(map[string]interface{})
		}

		configs = append(configs, cfg)
	}

	return configs
}
