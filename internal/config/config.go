package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	Port    = "PORT"
	GinMode = "GIN_MODE"

	LogLevel = "LOG_LEVEL"

	DefaultBalance  = "DEFAULT_BALANCE"
	TopBiddersLimit = "TOP_BIDDERS_LIMIT"
	SeedDemoData    = "SEED_DEMO_DATA"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	Marketplace MarketplaceConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    string
	GinMode string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// MarketplaceConfig holds marketplace rules that are deployment specific
type MarketplaceConfig struct {
	DefaultBalance  decimal.Decimal
	TopBiddersLimit int
	SeedDemoData    bool
}

// LoadConfig loads configuration from environment variables and an optional
// auction.env file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("auction")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	balance, err := decimal.NewFromString(v.GetString(DefaultBalance))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", DefaultBalance, err)
	}

	return &Config{
		Server: ServerConfig{
			Port:    v.GetString(Port),
			GinMode: v.GetString(GinMode),
		},
		Logging: LoggingConfig{
			Level: v.GetString(LogLevel),
		},
		Marketplace: MarketplaceConfig{
			DefaultBalance:  balance,
			TopBiddersLimit: v.GetInt(TopBiddersLimit),
			SeedDemoData:    v.GetBool(SeedDemoData),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(Port, "8080")
	v.SetDefault(GinMode, "release")
	v.SetDefault(LogLevel, "info")
	v.SetDefault(DefaultBalance, "1000")
	v.SetDefault(TopBiddersLimit, 5)
	v.SetDefault(SeedDemoData, false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Marketplace.DefaultBalance.IsNegative() {
		return fmt.Errorf("default balance cannot be negative")
	}
	if c.Marketplace.TopBiddersLimit < 1 {
		return fmt.Errorf("top bidders limit must be at least 1")
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}
