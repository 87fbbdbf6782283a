// Package config loads the server configuration from contentapi.yml and
// WAGTAILAPI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// WAGTAILAPI_LIMIT_MAX or WAGTAILAPI_SERVER_PORT
const EnvPrefix = "WAGTAILAPI"

// FileName is the config file searched for in the working directory
const FileName = "contentapi"

// Config represents the contentapi configuration
type Config struct {
	LimitMax      int          `mapstructure:"limit_max"`
	SearchEnabled bool         `mapstructure:"search_enabled"`
	BaseURL       string       `mapstructure:"base_url"`
	Server        ServerConfig `mapstructure:"server"`
	Store         StoreConfig  `mapstructure:"store"`
	Cache         CacheConfig  `mapstructure:"cache"`
	Purge         PurgeConfig  `mapstructure:"purge"`
	Log           LogConfig    `mapstructure:"log"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	APIPrefix      string        `mapstructure:"api_prefix"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedHosts   []string      `mapstructure:"allowed_hosts"`
	// CORSOrigins may contain "*"; empty disables CORS headers
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits API requests per client IP. Zero requests disables
// limiting. With the redis cache backend the limit is shared through Redis.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects where content is read from
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	SiteFile string `mapstructure:"site_file"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

// PurgeConfig lists the frontend caches that receive PURGE requests
type PurgeConfig struct {
	FrontendURLs []string `mapstructure:"frontend_urls"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("limit_max", 20)
	v.SetDefault("search_enabled", true)
	v.SetDefault("base_url", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.api_prefix", "/api")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.allowed_hosts", []string{"localhost"})
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit.requests", 0)
	v.SetDefault("server.rate_limit.window", time.Minute)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.site_file", "site.yml")

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("purge.frontend_urls", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads contentapi.yml from the working directory, or path when it is
// not empty, and applies environment overrides
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot
func Validate(cfg *Config) error {
	if cfg.LimitMax < 0 {
		return fmt.Errorf("limit_max must not be negative, got: %d", cfg.LimitMax)
	}

	if p := cfg.Server.APIPrefix; p != "" {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server.api_prefix must start with '/', got: %s", p)
		}
		if strings.HasSuffix(p, "/") {
			return fmt.Errorf("server.api_prefix must not end with '/', got: %s", p)
		}
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	if cfg.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rate_limit.requests must not be negative, got: %d", cfg.Server.RateLimit.Requests)
	}
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive")
	}

	switch cfg.Store.Driver {
	case DriverMemory:
		if cfg.Store.SiteFile == "" {
			return fmt.Errorf("store.site_file is required by the memory store")
		}
	case DriverSQLite, DriverPgx, DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required by the %s driver", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}

	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unknown cache.backend %q", cfg.Cache.Backend)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got: %s", cfg.Log.Format)
	}
	return nil
}
