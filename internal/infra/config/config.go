// Package config provides configuration loading from YAML files.
package config

import (
	"net/url"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player PlayerConfig `yaml:"player"`
	Poll   PollConfig   `yaml:"poll"`
	Server ServerConfig `yaml:"server"`
	Render RenderConfig `yaml:"render"`
	Browse BrowseConfig `yaml:"browse"`
}

// PlayerConfig represents the connection to the player's HTTP interface.
type PlayerConfig struct {
	BaseURL   string `yaml:"base_url" default:"http://127.0.0.1:8080/" validate:"required,url"`
	Password  string `yaml:"password"`
	TimeoutMs int    `yaml:"timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
}

// PollConfig represents poll loop configuration.
type PollConfig struct {
	IntervalMs    int    `yaml:"interval_ms" default:"1000" validate:"gte=100,lte=60000"`
	RetryDelayMs  int    `yaml:"retry_delay_ms" default:"500" validate:"gte=50,lte=60000"`
	LockTimeoutMs int    `yaml:"lock_timeout_ms" default:"5000" validate:"gte=100,lte=600000"`
	InitialQueue  string `yaml:"initial_queue" default:"main" validate:"oneof=main stream"`
	MaxErrors     int    `yaml:"max_errors" default:"20" validate:"gte=1,lte=1000"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8090"`
	Token string      `yaml:"token" validate:"required"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// RenderConfig represents render sink configuration.
type RenderConfig struct {
	Sinks map[string]SinkConfig `yaml:"sinks"`
}

// SinkConfig represents a render sink's configuration.
type SinkConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// BrowseConfig represents file browsing configuration.
type BrowseConfig struct {
	Extensions []string `yaml:"extensions" default:"[\"mp3\",\"ogg\",\"flac\",\"wav\",\"m4a\",\"aac\",\"wma\",\"avi\",\"mp4\",\"mkv\",\"mov\",\"wmv\",\"flv\",\"mpg\",\"ogv\",\"webm\"]"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("VLC_URL"); v != "" {
		c.Player.BaseURL = v
	}
	if v := os.Getenv("VLC_PASSWORD"); v != "" {
		c.Player.Password = v
	}
	if v := os.Getenv("PANEL_TOKEN"); v != "" {
		c.Server.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	u, err := url.Parse(c.Player.BaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to parse base_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("base_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.Poll.RetryDelayMs > c.Poll.IntervalMs {
		return errors.Newf("retry_delay_ms (%d) must not exceed interval_ms (%d)", c.Poll.RetryDelayMs, c.Poll.IntervalMs)
	}

	return nil
}

// Timeout returns the player request timeout.
func (c PlayerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Interval returns the delay after a successful poll.
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// RetryDelay returns the delay after a failed poll.
func (c PollConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// LockTimeout returns the default widget lock duration.
func (c PollConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// EnabledSinks returns the settings of every enabled sink by name.
func (c RenderConfig) EnabledSinks() map[string]map[string]any {
	enabled := make(map[string]map[string]any)
	for name, sink := range c.Sinks {
		if sink.Enabled {
			enabled[name] = sink.Settings
		}
	}
	return enabled
}
