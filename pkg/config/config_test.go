package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[client]
name = "tester"

[network]
host = "aos.example.net"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Client.Name != "tester" || cfg.Network.Host != "aos.example.net" {
		t.Fatalf("explicit values lost: %#v", cfg)
	}
	if cfg.Client.TickRate != 60 || cfg.Client.Weapon != "rifle" {
		t.Fatalf("client defaults not applied: %#v", cfg.Client)
	}
	if cfg.Network.Port != 32887 || cfg.ConnectTimeout() != 5*time.Second {
		t.Fatalf("network defaults not applied: %#v", cfg.Network)
	}
	if cfg.TickInterval() != time.Second/60 {
		t.Fatalf("unexpected tick interval %v", cfg.TickInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := writeConfig(t, "[client\nname=")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"blank name":     func(c *Config) { c.Client.Name = "  " },
		"tick rate":      func(c *Config) { c.Client.TickRate = 5000 },
		"team":           func(c *Config) { c.Client.Team = 7 },
		"port":           func(c *Config) { c.Network.Port = 70000 },
		"timeout":        func(c *Config) { c.Network.ConnectTimeoutMs = -1 },
		"scenario limit": func(c *Config) { c.Scenario.MaxTime = -2 },
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateWeapon(t *testing.T) {
	cfg := DefaultConfig()
	known := func(name string) bool { return name == "rifle" }

	if err := cfg.ValidateWeapon(known); err != nil {
		t.Fatalf("rifle must be accepted: %v", err)
	}

	cfg.Client.Weapon = "railgun"
	if err := cfg.ValidateWeapon(known); err == nil {
		t.Fatalf("expected unknown weapon error")
	}
}
