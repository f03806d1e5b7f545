// Package config loads runtime configuration from an optional .env file and
// a YAML document. Environment references in the YAML (${VAR}) are expanded
// before parsing so credentials stay out of checked-in files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	BaseURL  string `yaml:"baseURL"`
	AuthURL  string `yaml:"authURL"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type WeatherConfig struct {
	BaseURL   string  `yaml:"baseURL"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type ModelConfig struct {
	Path       string `yaml:"path"`
	TrainStart string `yaml:"trainStart"`
	TrainEnd   string `yaml:"trainEnd"`
	Cutoff     string `yaml:"cutoff"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Config struct {
	Timezone string         `yaml:"timezone"`
	Provider ProviderConfig `yaml:"provider"`
	Weather  WeatherConfig  `yaml:"weather"`
	Model    ModelConfig    `yaml:"model"`
	Database DatabaseConfig `yaml:"database"`
}

// NewDefaultConfig returns the production defaults for the Turkish grid
// territory. Credentials always come from the environment.
func NewDefaultConfig() *Config {
	return &Config{
		Timezone: "Europe/Istanbul",
		Provider: ProviderConfig{
			BaseURL:  "https://seffaflik.epias.com.tr/electricity-service",
			AuthURL:  "https://giris.epias.com.tr/cas/v1/tickets",
			Username: os.Getenv("EPIAS_USERNAME"),
			Password: os.Getenv("EPIAS_PASSWORD"),
		},
		Weather: WeatherConfig{
			BaseURL:   "https://historical-forecast-api.open-meteo.com/v1/forecast",
			Latitude:  39.0,
			Longitude: 35.0,
		},
		Model: ModelConfig{
			Path:       envOr("MODEL_PATH", "model.json"),
			TrainStart: "2022-01-01",
			TrainEnd:   "2026-01-01",
			Cutoff:     "2026-01-01",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    envOr("DATABASE_DSN", "monitoring.db"),
		},
	}
}

// Load reads configuration. A .env file in the working directory is applied
// first when present. If path is empty the defaults are returned; otherwise
// the YAML file at path overlays them after ${VAR} expansion.
func Load(path string) (*Config, error) {
	// missing .env is fine; explicit config errors are not
	_ = godotenv.Load()

	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file %s, %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s, %w", path, err)
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q, %w", c.Timezone, err)
	}
	return loc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
