// Package config provides centralized configuration for the session
// coordinator. Configuration is loaded from a JSON file at
// /etc/vmsession/config.json (overridable via the VMSESSION_CONFIG
// environment variable); every field has a working default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// DefaultConfigPath is the default location for the config file.
	DefaultConfigPath = "/etc/vmsession/config.json"

	// ConfigEnvVar is the environment variable to override the config file
	// location.
	ConfigEnvVar = "VMSESSION_CONFIG"
)

// Config is the root configuration structure.
type Config struct {
	Session     SessionConfig     `json:"session"`
	Termination TerminationConfig `json:"termination"`
	Sim         SimConfig         `json:"sim"`
}

// SessionConfig tunes the coordinator's confinement loop.
type SessionConfig struct {
	// MailboxBuffer is the capacity of the mutation mailbox. Producers
	// block once the mailbox is full, which backpressures event sources
	// instead of dropping notifications.
	MailboxBuffer int `json:"mailbox_buffer"`

	// SubscriberBuffer is the per-subscriber snapshot channel capacity.
	// Slow subscribers observe coalesced snapshots, never stale ones.
	SubscriberBuffer int `json:"subscriber_buffer"`
}

// TerminationConfig tunes the application-termination sequencing used by
// the simulator's terminator. The grace period itself is owned by the
// terminator implementation, not the coordination core.
type TerminationConfig struct {
	// Grace is how long the terminator waits between the background
	// transition signal and process termination. Duration string, e.g. "2s".
	Grace string `json:"grace"`
}

// GetGrace returns the termination grace period as a time.Duration.
// Panics if the configuration is invalid (caught earlier by validation).
func (t *TerminationConfig) GetGrace() time.Duration {
	return mustParseDuration(t.Grace)
}

// SimConfig tunes the simulated collaborators used by vmsession-sim.
type SimConfig struct {
	// StepDelay is how long the simulated VM takes per lifecycle step.
	// Duration string, e.g. "20ms".
	StepDelay string `json:"step_delay"`

	// DeviceLatency is the simulated device transport round-trip time.
	// Duration string, e.g. "10ms".
	DeviceLatency string `json:"device_latency"`
}

// GetStepDelay returns the simulated lifecycle step delay.
func (s *SimConfig) GetStepDelay() time.Duration {
	return mustParseDuration(s.StepDelay)
}

// GetDeviceLatency returns the simulated device transport latency.
func (s *SimConfig) GetDeviceLatency() time.Duration {
	return mustParseDuration(s.DeviceLatency)
}

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v (config validation should have caught this)", s, err))
	}
	return d
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.Mutex
	errConfig    error
)

// Reset clears the cached global config, forcing the next Get() call to
// reload. Intended for testing only.
func Reset() {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = nil
	errConfig = nil
	configOnce = sync.Once{}
}

// Get returns the global config, loading it on first call. A missing config
// file is not an error: the defaults are used.
func Get() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, errConfig = Load()
	})
	return globalConfig, errConfig
}

// Load loads configuration from VMSESSION_CONFIG or the default path,
// falling back to DefaultConfig when no file exists.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvVar)
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads configuration from a specific path. Returns an error if
// the file doesn't exist or is invalid.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w (ensure it's valid JSON)", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			MailboxBuffer:    64,
			SubscriberBuffer: 1,
		},
		Termination: TerminationConfig{
			Grace: "2s",
		},
		Sim: SimConfig{
			StepDelay:     "20ms",
			DeviceLatency: "10ms",
		},
	}
}

// applyDefaults fills empty fields with their default values.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Session.MailboxBuffer == 0 {
		c.Session.MailboxBuffer = def.Session.MailboxBuffer
	}
	if c.Session.SubscriberBuffer == 0 {
		c.Session.SubscriberBuffer = def.Session.SubscriberBuffer
	}
	if c.Termination.Grace == "" {
		c.Termination.Grace = def.Termination.Grace
	}
	if c.Sim.StepDelay == "" {
		c.Sim.StepDelay = def.Sim.StepDelay
	}
	if c.Sim.DeviceLatency == "" {
		c.Sim.DeviceLatency = def.Sim.DeviceLatency
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Session.MailboxBuffer < 1 {
		return fmt.Errorf("session.mailbox_buffer must be at least 1, got %d", c.Session.MailboxBuffer)
	}
	if c.Session.SubscriberBuffer < 1 {
		return fmt.Errorf("session.subscriber_buffer must be at least 1, got %d", c.Session.SubscriberBuffer)
	}
	if _, err := time.ParseDuration(c.Termination.Grace); err != nil {
		return fmt.Errorf("termination.grace is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Sim.StepDelay); err != nil {
		return fmt.Errorf("sim.step_delay is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Sim.DeviceLatency); err != nil {
		return fmt.Errorf("sim.device_latency is not a valid duration: %w", err)
	}
	return nil
}
