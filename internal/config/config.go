package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Wallet WalletConfig
	Prices map[string]string
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RedisConfig is optional: an empty Addr means the in-process nonce
// ledger, acceptable only for single-instance deployments.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type WalletConfig struct {
	PayTo  string `mapstructure:"pay_to"`
	TTLSec int64  `mapstructure:"ttl_sec"`
	Mock   bool   `mapstructure:"mock"`
}

// TTL returns the invoice time-to-live.
func (w WalletConfig) TTL() time.Duration {
	return time.Duration(w.TTLSec) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("wallet.ttl_sec", 300)
	v.SetDefault("wallet.mock", false)
	v.SetDefault("prices", map[string]string{
		"/validate/csv":    "0.01",
		"/clean/dataframe": "0.05",
		"/extract/pdf":     "0.05",
		"/summarize/logs":  "0.02",
	})

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"wallet.pay_to":  "PAY_TO_ADDRESS",
		"wallet.ttl_sec": "INVOICE_TTL_SECONDS",
		"wallet.mock":    "MOCK_MODE",
		"redis.addr":     "REDIS_ADDR",
		"redis.password": "REDIS_PASSWORD",
		"server.port":    "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Wallet.PayTo == "" {
		return fmt.Errorf("required config missing: PAY_TO_ADDRESS")
	}
	if c.Wallet.TTLSec <= 0 {
		return fmt.Errorf("INVOICE_TTL_SECONDS must be positive, got %d", c.Wallet.TTLSec)
	}
	if len(c.Prices) == 0 {
		return fmt.Errorf("no gated routes configured")
	}
	return nil
}
