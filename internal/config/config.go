// Package config loads and validates leadflow.yml, the configuration for the
// Leadflow demo server and harness.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LeadflowConfig represents the top-level leadflow.yml configuration.
type LeadflowConfig struct {
	Version  string        `yaml:"version"`
	Instance string        `yaml:"instance,omitempty"` // Instance namespace in Redis (default: "demo")
	Redis    *RedisConfig  `yaml:"redis,omitempty"`
	Server   *ServerConfig `yaml:"server,omitempty"`
	Demo     *DemoConfig   `yaml:"demo,omitempty"`
}

// RedisConfig specifies how to reach the Redis backing store.
type RedisConfig struct {
	URL string `yaml:"url"` // e.g. redis://localhost:6379
}

// ServerConfig specifies the HTTP/WebSocket listener.
type ServerConfig struct {
	Listen string `yaml:"listen"` // e.g. ":8000"
}

// DemoConfig specifies the demo project seeded on first run and the periodic
// stimulus that keeps the board moving.
type DemoConfig struct {
	Steps            []string `yaml:"steps,omitempty"`             // Ordered pipeline steps
	Sources          []string `yaml:"sources,omitempty"`           // Lead acquisition channels
	Leads            int      `yaml:"leads,omitempty"`             // Number of seeded leads
	Setters          int      `yaml:"setters,omitempty"`           // Number of seeded setters
	Closers          int      `yaml:"closers,omitempty"`           // Number of seeded closers
	StimulusInterval string   `yaml:"stimulus_interval,omitempty"` // e.g. "2s"; "off" disables the stimulus
}

// Default returns the configuration used when no leadflow.yml exists:
// a local Redis, the classic four-step pipeline, and a 2s demo stimulus.
func Default() *LeadflowConfig {
	cfg := &LeadflowConfig{Version: "1.0"}
	cfg.applyDefaults()
	return cfg
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *LeadflowConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	c.applyDefaults()

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url cannot be empty")
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen cannot be empty")
	}

	if len(c.Demo.Steps) == 0 {
		return fmt.Errorf("demo.steps must define at least one step")
	}
	seen := make(map[string]bool, len(c.Demo.Steps))
	for i, step := range c.Demo.Steps {
		if step == "" {
			return fmt.Errorf("demo.steps[%d] is empty", i)
		}
		if seen[step] {
			return fmt.Errorf("duplicate step in demo.steps: %q", step)
		}
		seen[step] = true
	}

	if c.Demo.Leads < 0 {
		return fmt.Errorf("demo.leads must be >= 0, got %d", c.Demo.Leads)
	}
	if c.Demo.Setters < 0 || c.Demo.Closers < 0 {
		return fmt.Errorf("demo.setters and demo.closers must be >= 0")
	}

	if c.Demo.StimulusInterval != "off" {
		interval, err := time.ParseDuration(c.Demo.StimulusInterval)
		if err != nil {
			return fmt.Errorf("invalid demo.stimulus_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("demo.stimulus_interval must be positive, got %s", interval)
		}
	}

	return nil
}

// StimulusInterval returns the parsed stimulus interval, or zero when the
// stimulus is disabled. Call only after Validate.
func (c *LeadflowConfig) StimulusInterval() time.Duration {
	if c.Demo == nil || c.Demo.StimulusInterval == "off" {
		return 0
	}
	interval, err := time.ParseDuration(c.Demo.StimulusInterval)
	if err != nil {
		return 0
	}
	return interval
}

func (c *LeadflowConfig) applyDefaults() {
	if c.Instance == "" {
		c.Instance = "demo"
	}
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379"
	}
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Demo == nil {
		c.Demo = &DemoConfig{}
	}
	if len(c.Demo.Steps) == 0 {
		c.Demo.Steps = []string{"New", "Qualified", "Meeting", "Closed"}
	}
	if len(c.Demo.Sources) == 0 {
		c.Demo.Sources = []string{"Ads", "Referral", "Webinar", "Cold Call"}
	}
	if c.Demo.Leads == 0 {
		c.Demo.Leads = 40
	}
	if c.Demo.Setters == 0 {
		c.Demo.Setters = 3
	}
	if c.Demo.Closers == 0 {
		c.Demo.Closers = 2
	}
	if c.Demo.StimulusInterval == "" {
		c.Demo.StimulusInterval = "2s"
	}
}

// Load reads and validates leadflow.yml from the specified path.
func Load(path string) (*LeadflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LeadflowConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
