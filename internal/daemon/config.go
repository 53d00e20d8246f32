// Package daemon manages the Astra server lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	API          APIConfig          `toml:"api"`
	Database     DatabaseConfig     `toml:"database"`
	Mentor       MentorConfig       `toml:"mentor"`
	Auth         AuthConfig         `toml:"auth"`
	Gamification GamificationConfig `toml:"gamification"`
	Logging      LoggingConfig      `toml:"logging"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// DatabaseConfig controls SQLite storage.
type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

// MentorConfig controls the chat completion service.
type MentorConfig struct {
	APIKey           string  `toml:"api_key"`
	BaseURL          string  `toml:"base_url"`
	Model            string  `toml:"model"`
	MaxTokens        int     `toml:"max_tokens"`
	Temperature      float64 `toml:"temperature"`
	PresencePenalty  float64 `toml:"presence_penalty"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	Timeout          string  `toml:"timeout"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Required  bool   `toml:"required"`
}

// GamificationConfig tunes progression side effects.
type GamificationConfig struct {
	NotificationsPerDay int `toml:"notifications_per_day"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	Mode  string `toml:"mode"` // "development" or "production"
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           3001,
			CORSOrigins:    []string{"*"},
			RequestTimeout: "60s",
		},
		Database: DatabaseConfig{
			Dir: astraHome(),
		},
		Mentor: MentorConfig{
			BaseURL:          "https://api.openai.com/v1",
			Model:            "gpt-4o",
			MaxTokens:        150,
			Temperature:      0.7,
			PresencePenalty:  0.1,
			FrequencyPenalty: 0.1,
			Timeout:          "30s",
		},
		Gamification: GamificationConfig{
			NotificationsPerDay: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "production",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads $ASTRA_HOME/config.toml over the defaults, then applies
// environment overrides. .env.local and .env are loaded first if present;
// neither overrides variables already set in the process.
func LoadConfig() (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Mentor.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Mentor.BaseURL = v
	}
	if v := os.Getenv("ASTRA_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ASTRA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ASTRA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// SaveConfig writes the config to $ASTRA_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(astraHome(), "config.toml")
}

// astraHome returns the Astra data directory.
func astraHome() string {
	if env := os.Getenv("ASTRA_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".astra")
}

// AstraHome is exported for use by other packages.
func AstraHome() string {
	return astraHome()
}

// parseDuration parses a duration string, returning a fallback on error.
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
