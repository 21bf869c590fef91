package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/siohaza/weaponsim/internal/validation"
)

type Config struct {
	Client   ClientConfig   `toml:"client"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Network  NetworkConfig  `toml:"network"`
	Scenario ScenarioConfig `toml:"scenario"`
}

type ClientConfig struct {
	Name     string `toml:"name"`
	TickRate int    `toml:"tick_rate"`
	Weapon   string `toml:"weapon"`
	Team     uint8  `toml:"team"`

	// logging configuration
	LogToFile bool `toml:"log_to_file"`
}

type CatalogConfig struct {
	// empty means the built-in v0.75 rows
	Path string `toml:"path"`
}

type NetworkConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	ConnectTimeoutMs int    `toml:"connect_timeout_ms"`
}

type ScenarioConfig struct {
	Script string `toml:"script"`
	// upper bound on simulated seconds a script may advance
	MaxTime float64 `toml:"max_time"`
}

func DefaultConfig() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Client.Name == "" {
		c.Client.Name = "Deuce"
	}
	if c.Client.TickRate == 0 {
		c.Client.TickRate = 60
	}
	if c.Client.Weapon == "" {
		c.Client.Weapon = "rifle"
	}

	if c.Network.Host == "" {
		c.Network.Host = "127.0.0.1"
	}
	if c.Network.Port == 0 {
		c.Network.Port = 32887
	}
	if c.Network.ConnectTimeoutMs == 0 {
		c.Network.ConnectTimeoutMs = 5000
	}

	if c.Scenario.MaxTime == 0 {
		c.Scenario.MaxTime = 600
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.Name) == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	if !validation.IsValidTickRate(c.Client.TickRate) {
		return fmt.Errorf("tick_rate must be between 1 and 1000")
	}

	if c.Client.Team > 1 && c.Client.Team != 255 {
		return fmt.Errorf("invalid team: %d", c.Client.Team)
	}

	if !validation.IsValidPort(c.Network.Port) {
		return fmt.Errorf("invalid port: %d", c.Network.Port)
	}

	if c.Network.ConnectTimeoutMs < 0 {
		return fmt.Errorf("connect_timeout_ms cannot be negative")
	}

	if c.Scenario.MaxTime <= 0 {
		return fmt.Errorf("scenario max_time must be positive")
	}

	return nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Client.TickRate)
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Network.ConnectTimeoutMs) * time.Millisecond
}

// ValidateWeapon checks the configured starting weapon against a catalog
// lookup.
func (c *Config) ValidateWeapon(known func(name string) bool) error {
	if !known(c.Client.Weapon) {
		return fmt.Errorf("unknown weapon: %q", c.Client.Weapon)
	}
	return nil
}
