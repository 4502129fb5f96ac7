// Package config loads server settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr                 string        `mapstructure:"ADDR"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	InMemory             bool          `mapstructure:"IN_MEMORY"`
	RememberMeKey        string        `mapstructure:"REMEMBER_ME_KEY"`
	SessionTTL           time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure         bool          `mapstructure:"COOKIE_SECURE"`
	CSRFEnabled          bool          `mapstructure:"CSRF_ENABLED"`
	ValidationMode       string        `mapstructure:"VALIDATION_MODE"`
	SeedEnabled          bool          `mapstructure:"SEED_ENABLED"`
	SeedAdminImpliesUser bool          `mapstructure:"SEED_ADMIN_IMPLIES_USER"`
	LoginWindow          time.Duration `mapstructure:"LOGIN_WINDOW"`
	LoginMaxFails        int           `mapstructure:"LOGIN_MAX_FAILS"`
	LoginBlockFor        time.Duration `mapstructure:"LOGIN_BLOCK_FOR"`
	JanitorInterval      time.Duration `mapstructure:"JANITOR_INTERVAL"`
	GRPCHealthAddr       string        `mapstructure:"GRPC_HEALTH_ADDR"`
	GRPCReflection       bool          `mapstructure:"GRPC_REFLECTION"`
	MigrateOnStart       bool          `mapstructure:"MIGRATE_ON_START"`
}

var keys = []string{
	"ADDR", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "IN_MEMORY", "REMEMBER_ME_KEY",
	"SESSION_TTL", "COOKIE_SECURE", "CSRF_ENABLED", "VALIDATION_MODE",
	"SEED_ENABLED", "SEED_ADMIN_IMPLIES_USER", "LOGIN_WINDOW", "LOGIN_MAX_FAILS",
	"LOGIN_BLOCK_FOR", "JANITOR_INTERVAL", "GRPC_HEALTH_ADDR", "GRPC_REFLECTION",
	"MIGRATE_ON_START",
}

// Load reads configuration from the process environment and ./.env.
func Load() (*Config, error) { return LoadFrom(viper.New()) }

// LoadFrom reads configuration through v, so callers can bind command-line flags first.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("ENV", "production")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("SESSION_TTL", 30*time.Minute)
	v.SetDefault("CSRF_ENABLED", true)
	v.SetDefault("VALIDATION_MODE", "relaxed")
	v.SetDefault("SEED_ENABLED", true)
	v.SetDefault("SEED_ADMIN_IMPLIES_USER", true)
	v.SetDefault("LOGIN_WINDOW", 15*time.Minute)
	v.SetDefault("LOGIN_MAX_FAILS", 5)
	v.SetDefault("LOGIN_BLOCK_FOR", 15*time.Minute)
	v.SetDefault("JANITOR_INTERVAL", 10*time.Minute)
	v.SetDefault("MIGRATE_ON_START", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDev reports whether development logging should be used.
func (c *Config) IsDev() bool { return c.Env == "development" }

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	var problems []error
	if c.DatabaseURL == "" && !c.InMemory {
		problems = append(problems, errors.New("DATABASE_URL is required"))
	}
	if len(c.RememberMeKey) < 16 {
		problems = append(problems, errors.New("REMEMBER_ME_KEY must be at least 16 bytes"))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.DBMaxConns < 0 {
		problems = append(problems, fmt.Errorf("DB_MAX_CONNS must not be negative, got %d", c.DBMaxConns))
	}
	switch c.ValidationMode {
	case "", "relaxed", "strict":
	default:
		problems = append(problems, fmt.Errorf("VALIDATION_MODE must be \"relaxed\" or \"strict\", got %q", c.ValidationMode))
	}
	if c.LoginMaxFails > 0 && (c.LoginWindow <= 0 || c.LoginBlockFor <= 0) {
		problems = append(problems, errors.New("LOGIN_WINDOW and LOGIN_BLOCK_FOR must be positive when LOGIN_MAX_FAILS > 0"))
	}
	return errors.Join(problems...)
}
