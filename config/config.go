// Package config loads the service configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// dev | staging | prod
	Env string `yaml:"env"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind     string `yaml:"kind"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"cache"`

	Auth struct {
		ChallengeTTL string `yaml:"challenge_ttl"`
		AccessTTL    string `yaml:"access_ttl"`
		RefreshTTL   string `yaml:"refresh_ttl"`
		Chain        string `yaml:"chain"`
		// Base64 SEC1 DER EC private key for access-token signing; an
		// ephemeral key is generated when empty (dev only).
		SigningKey  string `yaml:"signing_key"`
		DeviceGuard struct {
			// Bypass disables device binding. Only honored outside prod;
			// Load forces it off when env is prod.
			Bypass bool `yaml:"bypass"`
		} `yaml:"device_guard"`
	} `yaml:"auth"`

	Events struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"events"`

	Rewards struct {
		Enabled   bool   `yaml:"enabled"`
		RPCURL    string `yaml:"rpc_url"`
		Contract  string `yaml:"contract"`
		ChainID   int64  `yaml:"chain_id"`
		Amount    string `yaml:"amount"`
		SignerKey string `yaml:"signer_key"`
	} `yaml:"rewards"`
}

// Defaults applied when the file or environment leaves a field unset.
const (
	defaultAddr         = ":9000"
	defaultChallengeTTL = time.Hour
	defaultAccessTTL    = 5 * time.Minute
	defaultRefreshTTL   = 120 * time.Hour
	defaultChain        = "ethereum"
)

// Load reads path (optional) and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideString(&cfg.Env, "WG_ENV")
	overrideString(&cfg.Server.Addr, "WG_ADDR")
	overrideString(&cfg.Storage.Driver, "WG_STORAGE_DRIVER")
	overrideString(&cfg.Storage.DSN, "WG_DATABASE_DSN")
	overrideString(&cfg.Cache.Kind, "WG_CACHE_KIND")
	overrideString(&cfg.Cache.RedisURL, "WG_REDIS_URL")
	overrideString(&cfg.Auth.SigningKey, "WG_SIGNING_KEY")
	overrideString(&cfg.Rewards.SignerKey, "WG_REWARDS_SIGNER_KEY")

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Cache.Kind == "" {
		cfg.Cache.Kind = "memory"
	}
	if cfg.Auth.Chain == "" {
		cfg.Auth.Chain = defaultChain
	}

	// The bypass switch must never be live in production.
	if cfg.Env == "prod" {
		cfg.Auth.DeviceGuard.Bypass = false
	}

	return cfg, nil
}

// ChallengeTTL returns the parsed challenge TTL.
func (c *Config) ChallengeTTL() time.Duration {
	return parseDuration(c.Auth.ChallengeTTL, defaultChallengeTTL)
}

// AccessTTL returns the parsed access-token TTL.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.Auth.AccessTTL, defaultAccessTTL)
}

// RefreshTTL returns the parsed refresh-token TTL.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.Auth.RefreshTTL, defaultRefreshTTL)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
