// Package config loads application configuration from the environment.
//
// Every knob is an env var with a sensible local-dev default; a .env file in
// the working directory is read first when present (godotenv), so local runs
// don't need a wall of exports. caarlos0/env parses the variables into the
// struct via tags.
package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/splitr.db"`
	Debug  bool   `env:"DEBUG" envDefault:"false"`

	// Auth boundary. JWTSecret is required: without it no session can be
	// issued or verified. Generate one with: openssl rand -hex 32
	JWTSecret          string `env:"JWT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"` // defaults to http://localhost:<port>/auth/github/callback

	// Background jobs. Empty RedisAddr disables the job bus entirely — the
	// directory still works, only welcome emails are skipped.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Outbound email (Resend-compatible HTTP API).
	EmailAPIBase string `env:"EMAIL_API_BASE" envDefault:"https://api.resend.com"`
	EmailAPIKey  string `env:"EMAIL_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"Splitr <noreply@splitr.app>"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env file is not an error — in production the variables are
	// set directly on the process.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.GitHubClientID == "" || c.GitHubClientSecret == "" {
		return errors.New("config: GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("config: PORT must be between 1 and 65535")
	}
	return nil
}
