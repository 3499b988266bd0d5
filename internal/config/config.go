package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all psyche configuration.
type Config struct {
	Server   ServerConfig   `envPrefix:"PSYCHE_SERVER_"`
	Database DatabaseConfig `envPrefix:"PSYCHE_DB_"`
	Engine   EngineConfig   `envPrefix:"PSYCHE_ENGINE_"`
	Hooks    HooksConfig    `envPrefix:"PSYCHE_"`
}

type ServerConfig struct {
	Bind string `env:"BIND"`
	Port int    `env:"PORT"`
}

type DatabaseConfig struct {
	Path string `env:"PATH"`
}

type EngineConfig struct {
	// TickInterval is the fallback scheduler interval. A value persisted in
	// the settings table takes precedence.
	TickInterval  time.Duration `env:"TICK_INTERVAL"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT"`
	RetryMaxTries uint          `env:"RETRY_MAX_TRIES"`
	RetryInitial  time.Duration `env:"RETRY_INITIAL"`
	PassWorkers   int           `env:"PASS_WORKERS"`
}

type HooksConfig struct {
	ServerURL string        `env:"URL"`
	Timeout   time.Duration `env:"HOOK_TIMEOUT"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Engine: EngineConfig{
			TickInterval:  30 * time.Second,
			StoreTimeout:  5 * time.Second,
			RetryMaxTries: 3,
			RetryInitial:  100 * time.Millisecond,
			PassWorkers:   4,
		},
		Hooks: HooksConfig{
			ServerURL: "http://127.0.0.1:37778",
			Timeout:   5 * time.Second,
		},
	}
}

// Load returns Default() overridden by any PSYCHE_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Engine.TickInterval <= 0 {
		return cfg, fmt.Errorf("engine tick interval must be positive, got %s", cfg.Engine.TickInterval)
	}
	if cfg.Engine.PassWorkers < 1 {
		cfg.Engine.PassWorkers = 1
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
