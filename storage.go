package postal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultLockTimeout is the default timeout for acquiring file locks.
const DefaultLockTimeout = 30 * time.Second

// EnvCacheDir overrides the cache root when set.
const EnvCacheDir = "LIBPOSTAL_CACHE_DIR"

// markerName is the advisory completeness marker written into a version
// directory after a successful install. Never trusted without a matching
// structural check.
const markerName = ".complete"

// versionPattern constrains model version identifiers to a single safe path
// element: no separators, no traversal, no leading dot.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validateVersion rejects version identifiers that could escape the cache
// root or collide across distinct identifiers.
func validateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersionIdentifier, version)
	}
	return nil
}

// completeMarker is the JSON body of the completeness marker file.
type completeMarker struct {
	// Version is the model version the marker belongs to.
	Version string `json:"version"`

	// Components lists the component subdirectories installed.
	Components []string `json:"components"`

	// InstalledAt is when the install finished.
	InstalledAt time.Time `json:"installed_at"`
}

// storageInterface defines operations for local cache management.
// Implemented by *storage for production and mock storages in tests.
type storageInterface interface {
	// cacheRoot returns the base directory for all cached model versions.
	cacheRoot() string

	// versionDir returns the directory for a model version, validating the
	// identifier. Pure function of cacheRoot and version.
	versionDir(version string) (string, error)

	// stagingDir returns the directory for in-flight temporary files.
	stagingDir() string

	// ensureDir creates a directory and all parents if absent.
	ensureDir(path string) error

	// writeMarker atomically writes the completeness marker for a version.
	writeMarker(versionDir string, marker completeMarker) error

	// readMarker reads the completeness marker. ok is false when the marker
	// is missing or unreadable; an unreadable marker is treated as absent.
	readMarker(versionDir string) (marker completeMarker, ok bool)

	// removeVersionDir removes a version directory and all its contents.
	removeVersionDir(versionDir string) error
}

// storage handles all local cache filesystem operations.
type storage struct {
	// baseDir is the cache root.
	baseDir string

	// lockTimeout is the maximum duration to wait for file lock acquisition.
	lockTimeout time.Duration
}

// Ensure storage implements storageInterface.
var _ storageInterface = (*storage)(nil)

// newStorage resolves the cache root and creates it if absent.
// Priority: env var > Config.CacheDir > platform default.
func newStorage(cfg Config) (*storage, error) {
	var baseDir string

	if envDir := os.Getenv(EnvCacheDir); envDir != "" {
		baseDir = envDir
	} else if cfg.CacheDir != "" {
		baseDir = cfg.CacheDir
	} else {
		appName := cfg.AppName
		if appName == "" {
			appName = "libpostal"
		}
		defaultDir, err := getDefaultCacheDir(appName)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving default cache dir: %v", ErrStorage, err)
		}
		baseDir = defaultDir
	}

	s := &storage{baseDir: baseDir, lockTimeout: DefaultLockTimeout}

	if err := s.ensureDir(baseDir); err != nil {
		return nil, err
	}

	return s, nil
}

// cacheRoot returns the base directory for all cached model versions.
func (s *storage) cacheRoot() string {
	return s.baseDir
}

// versionDir returns the directory for a model version.
func (s *storage) versionDir(version string) (string, error) {
	if err := validateVersion(version); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, version), nil
}

// stagingDir returns the directory for in-flight downloads and extractions.
// Kept inside the cache root so renames into final position stay on one
// filesystem.
func (s *storage) stagingDir() string {
	return filepath.Join(s.baseDir, ".staging")
}

// ensureDir creates a directory and all parent directories if they don't exist.
func (s *storage) ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", ErrStorage, path, err)
	}
	return nil
}

// atomicWrite writes data to a file using write-then-rename for atomicity.
func (s *storage) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrStorage, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write temp file: %v", ErrStorage, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("%w: failed to rename temp file: %v", ErrStorage, err)
	}

	return nil
}

// writeMarker atomically writes the completeness marker for a version.
func (s *storage) writeMarker(versionDir string, marker completeMarker) error {
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal marker: %v", ErrStorage, err)
	}
	return s.atomicWrite(filepath.Join(versionDir, markerName), data)
}

// readMarker reads the completeness marker for a version directory.
func (s *storage) readMarker(versionDir string) (completeMarker, bool) {
	data, err := os.ReadFile(filepath.Join(versionDir, markerName))
	if err != nil {
		return completeMarker{}, false
	}

	var marker completeMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return completeMarker{}, false
	}
	return marker, true
}

// removeVersionDir removes a version directory and all its contents.
func (s *storage) removeVersionDir(versionDir string) error {
	if err := os.RemoveAll(versionDir); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %v", ErrStorage, versionDir, err)
	}
	return nil
}
