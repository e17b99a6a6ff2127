// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	TokenSecret string `env:"TOKEN_SECRET,required"`

	Capability CapabilityConfig `envPrefix:"CAPABILITY_"`
	Weather    WeatherConfig    `envPrefix:"WEATHER_"`
	Policy     Policy           `envPrefix:"POLICY_"`
}

// CapabilityConfig configures the external decision capability endpoint.
type CapabilityConfig struct {
	URL        string        `env:"URL"`
	APIKey     string        `env:"API_KEY"`
	Model      string        `env:"MODEL" envDefault:"gpt-4o"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"45s"`
	PromptPath string        `env:"PROMPT_PATH"`
}

// WeatherConfig configures the environmental data provider. An empty URL
// means weather lookups are disabled; aggregation proceeds without
// environmental data in that case.
type WeatherConfig struct {
	URL      string        `env:"URL"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`
}

// Policy holds the tunable coaching thresholds. Changing a value here must
// never require touching control flow.
type Policy struct {
	TrendCutoffPct    float64 `env:"TREND_CUTOFF_PCT" envDefault:"2.0"`
	PoorSleepFactor   float64 `env:"POOR_SLEEP_FACTOR" envDefault:"0.85"`
	BaselineStaleDays int     `env:"BASELINE_STALE_DAYS" envDefault:"14"`

	// Running-conditions tiers
	TempPoorHighC float64 `env:"TEMP_POOR_HIGH_C" envDefault:"30"`
	TempPoorLowC  float64 `env:"TEMP_POOR_LOW_C" envDefault:"-8"`
	TempFairHighC float64 `env:"TEMP_FAIR_HIGH_C" envDefault:"24"`
	TempFairLowC  float64 `env:"TEMP_FAIR_LOW_C" envDefault:"0"`
	WindPoorKph   float64 `env:"WIND_POOR_KPH" envDefault:"35"`
	WindFairKph   float64 `env:"WIND_FAIR_KPH" envDefault:"20"`
	PrecipPoorPct float64 `env:"PRECIP_POOR_PCT" envDefault:"70"`
	PrecipFairPct float64 `env:"PRECIP_FAIR_PCT" envDefault:"40"`

	// Weekly adaptation outcome bounds on the actual/planned volume ratio
	OverreachedRatio  float64 `env:"OVERREACHED_RATIO" envDefault:"1.15"`
	OnTargetRatio     float64 `env:"ON_TARGET_RATIO" envDefault:"0.85"`
	UndertrainedRatio float64 `env:"UNDERTRAINED_RATIO" envDefault:"0.50"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// HasCapability returns true if the decision capability is fully configured
func (c Config) HasCapability() bool {
	return c.Capability.URL != "" && c.Capability.APIKey != ""
}

// HasWeather returns true if the environmental provider is configured
func (c Config) HasWeather() bool {
	return c.Weather.URL != ""
}
