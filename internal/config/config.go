// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	DBURL                string        `mapstructure:"DB_URL"`
	GithubToken          string        `mapstructure:"GITHUB_TOKEN"`
	HTTPAddr             string        `mapstructure:"HTTP_ADDR"`
	SyncInterval         time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency      int           `mapstructure:"SYNC_CONCURRENCY"`
	StaleAfter           time.Duration `mapstructure:"STALE_AFTER"`
	DefaultSyncSinceDate string        `mapstructure:"DEFAULT_SYNC_SINCE_DATE"`
	DefaultSyncSinceTime time.Time     `mapstructure:"-"`

	// GithubRequestsPerSecond paces calls to the remote API; 0 disables pacing.
	GithubRequestsPerSecond float64 `mapstructure:"GITHUB_REQUESTS_PER_SECOND"`

	// RedisURL enables the cross-instance sync cycle lock when set.
	RedisURL    string        `mapstructure:"REDIS_URL"`
	SyncLockTTL time.Duration `mapstructure:"SYNC_LOCK_TTL"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("SYNC_CONCURRENCY", 5)
	v.SetDefault("STALE_AFTER", "6h")
	v.SetDefault("DEFAULT_SYNC_SINCE_DATE", "2023-01-01T00:00:00Z")
	v.SetDefault("GITHUB_REQUESTS_PER_SECOND", 10)
	v.SetDefault("SYNC_LOCK_TTL", "10m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	// Registered so AutomaticEnv picks them up during Unmarshal
	v.SetDefault("DB_URL", "")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("REDIS_URL", "")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(configPath)
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse DefaultSyncSinceDate
	parsedTime, err := time.Parse(time.RFC3339, cfg.DefaultSyncSinceDate)
	if err != nil {
		return nil, errors.New("DEFAULT_SYNC_SINCE_DATE must be in RFC3339 format (e.g. 2023-01-01T00:00:00Z)")
	}
	cfg.DefaultSyncSinceTime = parsedTime

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.SyncInterval <= 0 {
		return nil, errors.New("SYNC_INTERVAL must be a positive duration")
	}
	if cfg.SyncConcurrency < 1 {
		return nil, errors.New("SYNC_CONCURRENCY must be at least 1")
	}
	if cfg.GithubRequestsPerSecond < 0 {
		return nil, errors.New("GITHUB_REQUESTS_PER_SECOND must not be negative")
	}
	if cfg.RedisURL != "" && cfg.SyncLockTTL <= 0 {
		return nil, errors.New("SYNC_LOCK_TTL must be a positive duration when REDIS_URL is set")
	}

	return &cfg, nil
}
