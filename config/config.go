// Package config loads the runtime parameters of a control run from a
// configuration file, with overrides from the process environment and an
// optional .env file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ComponentConfig describes one component the controller polls.
type ComponentConfig struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Kind     string `json:"kind" yaml:"kind" toml:"kind"`
	PeriodMs int    `json:"period_ms" yaml:"period_ms" toml:"period_ms"`
}

// Period returns the polling period of the component.
func (c ComponentConfig) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// Config holds the runtime parameters for a control run.
type Config struct {
	TickIntervalMs int `json:"tick_interval_ms" yaml:"tick_interval_ms" toml:"tick_interval_ms"`
	Cycles         int `json:"cycles" yaml:"cycles" toml:"cycles"`

	MonitorPort   int  `json:"monitor_port" yaml:"monitor_port" toml:"monitor_port"`
	OpenDashboard bool `json:"open_dashboard" yaml:"open_dashboard" toml:"open_dashboard"`

	RecordingPath  string `json:"recording_path" yaml:"recording_path" toml:"recording_path"`
	Recording      bool   `json:"recording" yaml:"recording" toml:"recording"`
	AlertThreshold int    `json:"alert_threshold" yaml:"alert_threshold" toml:"alert_threshold"`

	Components []ComponentConfig `json:"components" yaml:"components" toml:"components"`
}

// TickInterval returns the fixed inter-tick sleep interval.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// Default returns the configuration of the reference demo run: a temperature
// sensor at 500ms and an LED at 700ms, polled for 10 cycles at a 50ms tick.
func Default() Config {
	return Config{
		TickIntervalMs: 50,
		Cycles:         10,
		AlertThreshold: 28,
		Components: []ComponentConfig{
			{Name: "temp0", Kind: "temperature", PeriodMs: 500},
			{Name: "led0", Kind: "led", PeriodMs: 700},
		},
	}
}

// Load reads a configuration file based on its extension. Supported formats:
// .yaml/.yml, .json, .toml.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}

	return cfg, err
}

// ApplyEnv overrides configuration values from TACT_* environment variables.
// A .env file in the working directory is loaded first when present.
func ApplyEnv(cfg *Config) error {
	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	overrides := []struct {
		key    string
		target *int
	}{
		{"TACT_TICK_INTERVAL_MS", &cfg.TickIntervalMs},
		{"TACT_CYCLES", &cfg.Cycles},
		{"TACT_MONITOR_PORT", &cfg.MonitorPort},
		{"TACT_ALERT_THRESHOLD", &cfg.AlertThreshold},
	}

	for _, o := range overrides {
		v := os.Getenv(o.key)
		if v == "" {
			continue
		}

		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", o.key, err)
		}

		*o.target = parsed
	}

	if v := os.Getenv("TACT_RECORDING_PATH"); v != "" {
		cfg.RecordingPath = v
		cfg.Recording = true
	}

	return nil
}

// Validate reports the first problem that makes the configuration unusable.
func (c Config) Validate() error {
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d",
			c.TickIntervalMs)
	}

	if c.Cycles < 0 {
		return fmt.Errorf("cycles must not be negative, got %d", c.Cycles)
	}

	for _, comp := range c.Components {
		if comp.Name == "" {
			return fmt.Errorf("component without a name")
		}

		if comp.PeriodMs <= 0 {
			return fmt.Errorf("component %s: period_ms must be positive",
				comp.Name)
		}

		switch comp.Kind {
		case "temperature", "led":
		default:
			return fmt.Errorf("component %s: unknown kind %q",
				comp.Name, comp.Kind)
		}
	}

	return nil
}
