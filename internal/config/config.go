// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Protocol ProtocolConfig       `yaml:"protocol"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	RateLimit       int           `yaml:"rate_limit" env:"SERVER_RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"SERVER_RATE_BURST"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs the
// in-memory store.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn" env:"DATABASE_DSN"`
	Migrate bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

// RedisConfig configures the optional guild fee cache. An empty address
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// AuthConfig holds the bearer token secret.
type AuthConfig struct {
	Secret string `yaml:"secret" env:"AUTH_SECRET"`
}

// ProtocolConfig pins the protocol role addresses. Empty fields fall back to
// deterministic system addresses.
type ProtocolConfig struct {
	DAO               string `yaml:"dao" env:"PROTOCOL_DAO"`
	ProtocolTreasury  string `yaml:"protocol_treasury" env:"PROTOCOL_TREASURY"`
	LabsTreasury      string `yaml:"labs_treasury" env:"PROTOCOL_LABS_TREASURY"`
	ResolverTreasury  string `yaml:"resolver_treasury" env:"PROTOCOL_RESOLVER_TREASURY"`
	Resolver          string `yaml:"resolver" env:"PROTOCOL_RESOLVER"`
	FinalizerSchedule string `yaml:"finalizer_schedule" env:"PROTOCOL_FINALIZER_SCHEDULE"`
}

// Load reads the YAML file at path, then applies environment overrides. A
// missing file is not an error; the environment alone can configure the
// server.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Protocol: ProtocolConfig{
			FinalizerSchedule: "@every 1m",
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"protocol.dao", c.Protocol.DAO},
		{"protocol.protocol_treasury", c.Protocol.ProtocolTreasury},
		{"protocol.labs_treasury", c.Protocol.LabsTreasury},
		{"protocol.resolver_treasury", c.Protocol.ResolverTreasury},
		{"protocol.resolver", c.Protocol.Resolver},
	} {
		if field.value == "" {
			continue
		}
		if _, err := identity.Parse(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	return nil
}

// Address parses a configured address, returning the zero address for the
// empty string.
func Address(s string) identity.Address {
	if s == "" {
		return identity.Zero
	}
	return identity.MustParse(s)
}
