// Package config loads the daemon configuration from a YAML file, with
// environment variable overrides for the fields that typically differ
// between deployments (device address, broker credentials).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Poll     PollConfig    `yaml:"poll"`
	Backoff  BackoffConfig `yaml:"backoff"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	LogLevel string        `yaml:"log_level"`
}

// DeviceConfig identifies the target device and bounds connection attempts.
type DeviceConfig struct {
	// Address is the platform device identifier: MAC on Linux, a
	// CoreBluetooth UUID on macOS. Discoverable via the -scan mode.
	Address         string `yaml:"address"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s"`
}

// PollConfig holds the poll loop cadence.
type PollConfig struct {
	TemperatureIntervalMs int `yaml:"temperature_interval_ms"`
	RSSIIntervalS         int `yaml:"rssi_interval_s"`
}

// BackoffConfig bounds the reconnect retry delay.
type BackoffConfig struct {
	InitialS int `yaml:"initial_s"`
	MaxS     int `yaml:"max_s"`
}

// MQTTConfig configures the optional state bridge.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "volcanod", "config.yaml")
}

// Default returns a Config with sensible default values. The device address
// has no default; it must come from the file, the environment, or a flag.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ConnectTimeoutS: 20,
		},
		Poll: PollConfig{
			TemperatureIntervalMs: 1000,
			RSSIIntervalS:         60,
		},
		Backoff: BackoffConfig{
			InitialS: 3,
			MaxS:     30,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "volcanod",
			TopicPrefix: "volcano",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults, then environment overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied, for
// running without a config file.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// applyEnv overrides config fields from the environment. A .env file in the
// working directory is loaded first if present.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	c.Device.Address = getEnv("VOLCANO_ADDRESS", c.Device.Address)
	c.MQTT.Broker = getEnv("VOLCANO_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Username = getEnv("VOLCANO_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("VOLCANO_MQTT_PASSWORD", c.MQTT.Password)
	c.LogLevel = getEnv("VOLCANO_LOG_LEVEL", c.LogLevel)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address must not be empty (use -scan to discover it)")
	}
	if c.Device.ConnectTimeoutS <= 0 {
		return fmt.Errorf("device.connect_timeout_s must be > 0")
	}
	if c.Poll.TemperatureIntervalMs <= 0 {
		return fmt.Errorf("poll.temperature_interval_ms must be > 0")
	}
	if c.Poll.RSSIIntervalS <= 0 {
		return fmt.Errorf("poll.rssi_interval_s must be > 0")
	}
	if c.Backoff.InitialS <= 0 {
		return fmt.Errorf("backoff.initial_s must be > 0")
	}
	if c.Backoff.MaxS < c.Backoff.InitialS {
		return fmt.Errorf("backoff.max_s must be >= backoff.initial_s")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must not be empty when mqtt is enabled")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

// ConnectTimeout returns the connection attempt timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Device.ConnectTimeoutS) * time.Second
}

// TemperatureInterval returns the temperature poll interval.
func (c *Config) TemperatureInterval() time.Duration {
	return time.Duration(c.Poll.TemperatureIntervalMs) * time.Millisecond
}

// RSSIInterval returns the signal-strength poll interval.
func (c *Config) RSSIInterval() time.Duration {
	return time.Duration(c.Poll.RSSIIntervalS) * time.Second
}

// BackoffInitial returns the first reconnect delay.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.Backoff.InitialS) * time.Second
}

// BackoffMax returns the reconnect delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxS) * time.Second
}
