package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	postal "github.com/riordan/pypostal"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("POSTAL_MANIFEST_URL", "")
	t.Setenv("POSTAL_CACHE_DIR", "")

	// Run from an empty directory so no stray config file is picked up.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ManifestURL != postal.DefaultManifestURL {
		t.Errorf("ManifestURL = %q, want default", cfg.ManifestURL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `manifest_url: https://mirror.example.com/models.json
cache_dir: /var/cache/postal
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ManifestURL != "https://mirror.example.com/models.json" {
		t.Errorf("ManifestURL = %q", cfg.ManifestURL)
	}
	if cfg.CacheDir != "/var/cache/postal" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for explicitly named missing config file")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("POSTAL_MANIFEST_URL", "https://env.example.com/models.json")

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ManifestURL != "https://env.example.com/models.json" {
		t.Errorf("ManifestURL = %q, want env override", cfg.ManifestURL)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	log := newLogger(loggingConfig{Level: "debug", Format: "text"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}

	// Unknown levels fall back to info rather than failing.
	log = newLogger(loggingConfig{Level: "chatty", Format: "json"})
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSONFormatter", log.Formatter)
	}
}

func TestFieldsPairing(t *testing.T) {
	f := fields([]any{"version", "default", "count", 3})
	if f["version"] != "default" || f["count"] != 3 {
		t.Errorf("fields = %v", f)
	}

	f = fields([]any{"version", "default", "dangling"})
	if f["extra"] != "dangling" {
		t.Errorf("unpaired value not preserved: %v", f)
	}
}
