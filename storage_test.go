package postal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStorageEnvOverridesConfig(t *testing.T) {
	envDir := t.TempDir()
	cfgDir := t.TempDir()
	t.Setenv(EnvCacheDir, envDir)

	s, err := newStorage(Config{CacheDir: cfgDir})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}
	if s.cacheRoot() != envDir {
		t.Errorf("cacheRoot = %q, want env dir %q", s.cacheRoot(), envDir)
	}
}

func TestNewStorageConfigDir(t *testing.T) {
	t.Setenv(EnvCacheDir, "")
	cfgDir := filepath.Join(t.TempDir(), "nested", "cache")

	s, err := newStorage(Config{CacheDir: cfgDir})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}
	if s.cacheRoot() != cfgDir {
		t.Errorf("cacheRoot = %q, want %q", s.cacheRoot(), cfgDir)
	}

	// The root is created eagerly.
	info, err := os.Stat(cfgDir)
	if err != nil || !info.IsDir() {
		t.Errorf("cache root not created: %v", err)
	}
}

func TestValidateVersion(t *testing.T) {
	valid := []string{"default", "senzing", "v1.2.3", "2024-01_model", "a"}
	for _, v := range valid {
		if err := validateVersion(v); err != nil {
			t.Errorf("validateVersion(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", ".", "..", ".hidden", "-dash", "a/b", `a\b`, "a b", "../../etc", "ver sion"}
	for _, v := range invalid {
		if err := validateVersion(v); !errors.Is(err, ErrInvalidVersionIdentifier) {
			t.Errorf("validateVersion(%q) = %v, want ErrInvalidVersionIdentifier", v, err)
		}
	}
}

func TestVersionDirStaysUnderRoot(t *testing.T) {
	t.Setenv(EnvCacheDir, "")
	root := t.TempDir()
	s, err := newStorage(Config{CacheDir: root})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}

	dir, err := s.versionDir("default")
	if err != nil {
		t.Fatalf("versionDir: %v", err)
	}
	if filepath.Dir(dir) != root {
		t.Errorf("versionDir %q not directly under root %q", dir, root)
	}

	if _, err := s.versionDir("../escape"); !errors.Is(err, ErrInvalidVersionIdentifier) {
		t.Errorf("traversal identifier accepted: %v", err)
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	t.Setenv(EnvCacheDir, "")
	s, err := newStorage(Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}

	versionDir, _ := s.versionDir("default")
	if err := s.ensureDir(versionDir); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.readMarker(versionDir); ok {
		t.Fatal("readMarker reported a marker before one was written")
	}

	in := completeMarker{
		Version:     "default",
		Components:  requiredComponents,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.writeMarker(versionDir, in); err != nil {
		t.Fatalf("writeMarker: %v", err)
	}

	out, ok := s.readMarker(versionDir)
	if !ok {
		t.Fatal("readMarker did not find the marker")
	}
	if out.Version != in.Version || !out.InstalledAt.Equal(in.InstalledAt) {
		t.Errorf("marker round trip mismatch: got %+v, want %+v", out, in)
	}
	if len(out.Components) != len(in.Components) {
		t.Errorf("components = %v, want %v", out.Components, in.Components)
	}
}

func TestReadMarkerToleratesCorruption(t *testing.T) {
	t.Setenv(EnvCacheDir, "")
	s, err := newStorage(Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}

	versionDir, _ := s.versionDir("default")
	if err := s.ensureDir(versionDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, markerName), []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.readMarker(versionDir); ok {
		t.Error("corrupt marker reported as valid")
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	t.Setenv(EnvCacheDir, "")
	s, err := newStorage(Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}

	target := filepath.Join(s.cacheRoot(), "out.json")
	if err := s.atomicWrite(target, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("atomicWrite: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("target content = %q, err = %v", data, err)
	}

	entries, err := os.ReadDir(s.cacheRoot())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("cache root holds %v, want only out.json", names)
	}
}
