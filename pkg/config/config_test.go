package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "taxon")
	cfg := sample{}
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\nport: 80\n"), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "taxon" || cfg.Port != 80 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	cfg := sample{}
	err := Load(writeFile(t, "name: x\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil || found {
		t.Fatalf("LoadOptional = %v, %v", found, err)
	}
	if cfg.Name != "default" {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestLoadOptional_ReadsFile(t *testing.T) {
	cfg := sample{Name: "default", Port: 8080}
	found, err := LoadOptional(writeFile(t, "name: file\n"), &cfg)
	if err != nil || !found {
		t.Fatalf("LoadOptional = %v, %v", found, err)
	}
	if cfg.Name != "file" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}
