package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the swatchsyncd YAML configuration.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen" validate:"required"`
	// Page is the path of the page markup file to load and watch.
	Page string `yaml:"page" validate:"required"`
	// AnalyticsDB is the SQLite path for swatch-change events. Empty
	// disables analytics.
	AnalyticsDB string `yaml:"analytics_db"`
	// AnimationSpeedMS is the full fade duration for a switch.
	AnimationSpeedMS int `yaml:"animation_speed_ms" validate:"gte=0,lte=5000"`
	// DebounceMS is the coordinator debounce window.
	DebounceMS int `yaml:"debounce_ms" validate:"gte=0,lte=5000"`
	// PreloadCount is how many swatches are eagerly preloaded per container.
	PreloadCount int `yaml:"preload_count" validate:"gte=0,lte=50"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8098"
	}
	if c.AnimationSpeedMS <= 0 {
		c.AnimationSpeedMS = 300
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = 80
	}
	if c.PreloadCount <= 0 {
		c.PreloadCount = 3
	}
}

// AnimationSpeed returns the fade duration.
func (c *Config) AnimationSpeed() time.Duration {
	return time.Duration(c.AnimationSpeedMS) * time.Millisecond
}

// Debounce returns the coordinator window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// LoadConfigFile reads, defaults, and validates a YAML config.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
