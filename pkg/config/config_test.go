package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name" env:"CONFIG_TEST_NAME"`
	Port int    `yaml:"port" env:"CONFIG_TEST_PORT"`
	Dir  string `yaml:"dir"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsAndOverrides(t *testing.T) {
	t.Setenv("CONFIG_TEST_DIR", "/srv/cards")
	t.Setenv("CONFIG_TEST_PORT", "9090")
	path := writeConfig(t, "name: tally\nport: 8080\ndir: ${CONFIG_TEST_DIR}\n")

	var cfg sample
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "tally" || cfg.Dir != "/srv/cards" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Port)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "name: tally\nport: 0\n")
	var cfg sample
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithDefaultsFallsBackToEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "from-env")
	cfg := sample{Port: 1}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), "", &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Name != "from-env" || cfg.Port != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}
