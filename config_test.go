package portaros_test

import (
	"testing"

	"github.com/portaros/portaros"
)

func TestConfigFromMap(t *testing.T) {
	cfg, err := portaros.ConfigFromMap(map[string]any{
		"debug":             "true",
		"cache_capacity":    "256",
		"controller_suffix": "controller",
		"origins":           []any{"https://app.example.com", "https://*.example.com"},
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected the string \"true\" to set Debug")
	}
	if cfg.CacheCapacity != 256 {
		t.Errorf("expected 256, got %d", cfg.CacheCapacity)
	}
	if cfg.ControllerSuffix != "controller" {
		t.Errorf("expected the suffix bound, got %q", cfg.ControllerSuffix)
	}
	if len(cfg.Origins) != 2 || cfg.Origins[0] != "https://app.example.com" {
		t.Errorf("expected the origin list bound, got %v", cfg.Origins)
	}
}

func TestConfigFromMapWeakTyping(t *testing.T) {
	cfg, err := portaros.ConfigFromMap(map[string]any{"debug": 1, "cache_capacity": 64.0})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected the integer 1 to set Debug")
	}
	if cfg.CacheCapacity != 64 {
		t.Errorf("expected 64, got %d", cfg.CacheCapacity)
	}
}

func TestConfigFromMapDefaults(t *testing.T) {
	cfg, err := portaros.ConfigFromMap(map[string]any{})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.CacheCapacity != portaros.DefaultConfig().CacheCapacity {
		t.Errorf("expected the default capacity, got %d", cfg.CacheCapacity)
	}
	if cfg.Debug {
		t.Error("expected debug off by default")
	}
}

func TestConfigFromMapUnknownKeysIgnored(t *testing.T) {
	if _, err := portaros.ConfigFromMap(map[string]any{"no_such_option": true}); err != nil {
		t.Errorf("expected unknown keys to be ignored, got %v", err)
	}
}

func TestConfigFromMapBadValue(t *testing.T) {
	if _, err := portaros.ConfigFromMap(map[string]any{"cache_capacity": "many"}); err == nil {
		t.Error("expected a decode error for a non-numeric capacity")
	}
}
