package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Billing BillingConfig `mapstructure:"billing"`
	Forms   FormsConfig   `mapstructure:"forms"`
}

type AppConfig struct {
	Env string `mapstructure:"env" validate:"oneof=development production test"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// BackendConfig points at the shop backend that stores products, buyers and sales.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type BillingConfig struct {
	// BlockOnInsufficientStock turns stock warnings into submission errors.
	BlockOnInsufficientStock bool `mapstructure:"block_on_insufficient_stock"`
	LowStockThreshold        int  `mapstructure:"low_stock_threshold" validate:"gte=1"`
}

// FormsConfig bounds how long open sale forms are kept in memory.
type FormsConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("billing.block_on_insufficient_stock", false)
	v.SetDefault("billing.low_stock_threshold", 10)
	v.SetDefault("forms.idle_ttl", "2h")
	v.SetDefault("forms.sweep_interval", "5m")
}

// Load reads configuration from an optional sales.yml, the environment and
// an optional .env file. Environment keys use the SALES_ prefix, e.g.
// SALES_BACKEND_BASE_URL.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("sales")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/sales")
	v.AddConfigPath(".")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SALES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
