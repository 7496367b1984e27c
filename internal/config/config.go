// Package config loads settings from an optional env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPPort int `mapstructure:"HTTP_PORT"`
	GRPCPort int `mapstructure:"GRPC_PORT"`

	StorageDriver  string `mapstructure:"STORAGE_DRIVER"`
	MySQLDSN       string `mapstructure:"MYSQL_DSN"`
	PostgresDSN    string `mapstructure:"POSTGRES_DSN"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	RedisKeyPrefix  string        `mapstructure:"REDIS_KEY_PREFIX"`
	CatalogCacheTTL time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	InvoiceCacheTTL time.Duration `mapstructure:"INVOICE_CACHE_TTL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	SearchMaxResults    int     `mapstructure:"SEARCH_MAX_RESULTS"`
	SearchMinSimilarity float64 `mapstructure:"SEARCH_MIN_SIMILARITY"`
	Currency            string  `mapstructure:"CURRENCY"`

	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogPretty      bool          `mapstructure:"LOG_PRETTY"`
	HealthInterval time.Duration `mapstructure:"HEALTH_INTERVAL"`
}

var defaults = map[string]any{
	"HTTP_PORT":             8080,
	"GRPC_PORT":             50051,
	"STORAGE_DRIVER":        DriverMySQL,
	"MYSQL_DSN":             "root:root@tcp(localhost:3306)/orderbot?parseTime=true",
	"POSTGRES_DSN":          "host=localhost port=5432 user=postgres password=postgres dbname=orderbot sslmode=disable",
	"DB_MAX_OPEN_CONNS":     50,
	"DB_MAX_IDLE_CONNS":     25,
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"REDIS_KEY_PREFIX":      "orderbot:",
	"CATALOG_CACHE_TTL":     time.Minute,
	"INVOICE_CACHE_TTL":     10 * time.Minute,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "order-events",
	"SEARCH_MAX_RESULTS":    5,
	"SEARCH_MIN_SIMILARITY": 0.3,
	"CURRENCY":              "IRR",
	"LOG_LEVEL":             "info",
	"LOG_PRETTY":            false,
	"HEALTH_INTERVAL":       10 * time.Second,
}

// Load reads path when it exists, then lets environment variables override
// it. An empty path means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("config: invalid GRPC_PORT %d", c.GRPCPort)
	}
	if c.SearchMaxResults <= 0 {
		return fmt.Errorf("config: SEARCH_MAX_RESULTS must be positive")
	}
	if c.SearchMinSimilarity < 0 || c.SearchMinSimilarity > 1 {
		return fmt.Errorf("config: SEARCH_MIN_SIMILARITY must be within [0, 1]")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas. Empty means events are disabled.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
