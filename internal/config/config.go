package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string   `mapstructure:"PORT"`
	Env                    string   `mapstructure:"ENV"`
	DatabaseURL            string   `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant          string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins            []string `mapstructure:"CORS_ORIGINS"`
	AuthIssuer             string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience           string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey         string   `mapstructure:"AUTH_SIGNING_KEY"`
	RedisURL               string   `mapstructure:"REDIS_URL"`
	CacheTTLSeconds        int      `mapstructure:"CACHE_TTL_SECONDS"`
	ProposerURL            string   `mapstructure:"PROPOSER_URL"`
	ProposerAPIKey         string   `mapstructure:"PROPOSER_API_KEY"`
	ProposerTimeoutSeconds int      `mapstructure:"PROPOSER_TIMEOUT_SECONDS"`
	CatalogPageSize        int      `mapstructure:"CATALOG_PAGE_SIZE"`
	RateLimitRPS           float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeoutSeconds  int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	BodyLimit              string   `mapstructure:"BODY_LIMIT"`
	ImportBodyLimit        string   `mapstructure:"IMPORT_BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "CORS_ORIGINS", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "REDIS_URL", "CACHE_TTL_SECONDS", "PROPOSER_URL",
	"PROPOSER_API_KEY", "PROPOSER_TIMEOUT_SECONDS", "CATALOG_PAGE_SIZE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT_SECONDS",
	"BODY_LIMIT", "IMPORT_BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("PROPOSER_TIMEOUT_SECONDS", 60)
	v.SetDefault("CATALOG_PAGE_SIZE", 12)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("IMPORT_BODY_LIMIT", "10M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) ProposerTimeout() time.Duration {
	return time.Duration(c.ProposerTimeoutSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside
// development a signing key is required so bearer tokens are verified.
func (c *Config) Validate() error {
	var errs []error
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY must be set when ENV=%q", c.Env))
		} else if len(c.AuthSigningKey) < 32 {
			errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey)))
		}
	}
	if c.CatalogPageSize <= 0 {
		errs = append(errs, fmt.Errorf("CATALOG_PAGE_SIZE must be positive, got %d", c.CatalogPageSize))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	if c.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_SECONDS must not be negative"))
	}
	if c.ProposerURL != "" && c.ProposerTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("PROPOSER_TIMEOUT_SECONDS must be positive when PROPOSER_URL is set"))
	}
	return errors.Join(errs...)
}
