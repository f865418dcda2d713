package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	SQLitePath         string        `mapstructure:"SQLITE_PATH"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	FacilitiesFile     string        `mapstructure:"FACILITIES_FILE"`
	TreeFile           string        `mapstructure:"TREE_FILE"`
	ClaimLease         time.Duration `mapstructure:"CLAIM_LEASE"`
	LeaseSweepInterval time.Duration `mapstructure:"LEASE_SWEEP_INTERVAL"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	AllowReconfirm     bool          `mapstructure:"ALLOW_RECONFIRM"`
	SymptomShortcuts   bool          `mapstructure:"SYMPTOM_SHORTCUTS"`
	PersistRetries     int           `mapstructure:"PERSIST_RETRIES"`
	PersistBackoff     time.Duration `mapstructure:"PERSIST_BACKOFF"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SQLITE_PATH", "CORS_ORIGINS", "FACILITIES_FILE", "TREE_FILE", "CLAIM_LEASE",
	"LEASE_SWEEP_INTERVAL", "ALLOW_RECONFIRM", "SYMPTOM_SHORTCUTS", "PERSIST_RETRIES",
	"PERSIST_BACKOFF", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SESSION_TTL",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SQLITE_PATH", "medicenter.db")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CLAIM_LEASE", "0s")
	v.SetDefault("LEASE_SWEEP_INTERVAL", "30s")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("ALLOW_RECONFIRM", true)
	v.SetDefault("SYMPTOM_SHORTCUTS", true)
	v.SetDefault("PERSIST_RETRIES", 3)
	v.SetDefault("PERSIST_BACKOFF", "100ms")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = nil
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q: %w", DriverPostgres, apperr.ErrConfiguration)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q: %w", DriverSQLite, apperr.ErrConfiguration)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q: %w",
			DriverMemory, DriverPostgres, DriverSQLite, c.StoreDriver, apperr.ErrConfiguration)
	}
	if c.IsProduction() && c.StoreDriver == DriverMemory {
		return fmt.Errorf("STORE_DRIVER=memory loses every record on restart and is refused in production: %w", apperr.ErrConfiguration)
	}
	if c.ClaimLease < 0 {
		return fmt.Errorf("CLAIM_LEASE must not be negative, got %s: %w", c.ClaimLease, apperr.ErrConfiguration)
	}
	if c.ClaimLease > 0 && c.LeaseSweepInterval <= 0 {
		return fmt.Errorf("LEASE_SWEEP_INTERVAL must be positive when CLAIM_LEASE is set: %w", apperr.ErrConfiguration)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative, got %s: %w", c.SessionTTL, apperr.ErrConfiguration)
	}
	if c.PersistRetries < 1 {
		return fmt.Errorf("PERSIST_RETRIES must be at least 1, got %d: %w", c.PersistRetries, apperr.ErrConfiguration)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d): %w", c.DBMinConns, c.DBMaxConns, apperr.ErrConfiguration)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive: %w", apperr.ErrConfiguration)
	}
	return nil
}
