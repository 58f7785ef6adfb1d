package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte("app:\n  env: dev\nstorage:\n  driver: memory\npricing:\n  max_retries: 5\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_HTTP_ADDR", ":9090")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.App.Env != "dev" || c.Storage.Driver != "memory" || c.Pricing.MaxRetries != 5 {
		t.Errorf("file values not loaded: %+v", c)
	}
	if c.HTTP.Addr != ":9090" {
		t.Errorf("env override ignored: addr = %q", c.HTTP.Addr)
	}
	if c.Pricing.Epsilon != 1e-6 || c.Normalizer.TotalTolerance != 0.01 || c.Ingest.Workers != 4 {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
